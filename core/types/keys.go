package types

// TransactionKeys declares the accounts a transaction reads and writes.
// AllKeys is always SourceKeys followed by TargetKeys.
type TransactionKeys struct {
	SourceKeys []string `json:"sourceKeys"`
	TargetKeys []string `json:"targetKeys"`
	AllKeys    []string `json:"allKeys"`
}

// NewTransactionKeys builds keys from the given source and target ids.
func NewTransactionKeys(source, target []string) TransactionKeys {
	keys := TransactionKeys{
		SourceKeys: append([]string(nil), source...),
		TargetKeys: append([]string(nil), target...),
	}
	keys.AllKeys = make([]string, 0, len(source)+len(target))
	keys.AllKeys = append(keys.AllKeys, keys.SourceKeys...)
	keys.AllKeys = append(keys.AllKeys, keys.TargetKeys...)
	return keys
}

// ValidationResult is the verdict returned for an inbound transaction.
type ValidationResult struct {
	Success   bool   `json:"success"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"txnTimestamp,omitempty"`
}

// Accept returns a successful result.
func Accept(reason string, timestamp int64) ValidationResult {
	return ValidationResult{Success: true, Reason: reason, Timestamp: timestamp}
}

// Reject returns a failed result carrying reason.
func Reject(reason string, timestamp int64) ValidationResult {
	return ValidationResult{Success: false, Reason: reason, Timestamp: timestamp}
}
