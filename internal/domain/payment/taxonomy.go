package payment

// nativeStatuses is the single shared mapping from each provider's status
// vocabulary into the canonical one. Adapters return native statuses
// untouched; everything downstream goes through this table.
var nativeStatuses = map[Provider]map[string]Status{
	ProviderMpesa: {
		// STK push result codes. 0 is success; 1032 is "request cancelled
		// by user"; everything else the adapter reports is a failure.
		"0":    StatusSuccess,
		"1032": StatusCancelled,
		"1037": StatusFailed, // timeout waiting for user PIN
		"1":    StatusFailed, // insufficient balance
	},
	ProviderMTNMoMo: {
		"SUCCESSFUL": StatusSuccess,
		"PENDING":    StatusPending,
		"FAILED":     StatusFailed,
		"REJECTED":   StatusFailed,
		"TIMEOUT":    StatusFailed,
	},
}

// CanonicalStatus maps a provider-native status into the canonical set.
// The second return is false when the native value is not in the table.
func CanonicalStatus(p Provider, native string) (Status, bool) {
	m, ok := nativeStatuses[p]
	if !ok {
		return StatusFailed, false
	}
	s, ok := m[native]
	if !ok {
		return StatusFailed, false
	}
	return s, true
}
