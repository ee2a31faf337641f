package shared

import "fmt"

// CompletionLockKey builds the redis key guarding purchase-order completion.
func CompletionLockKey(orderID int64) string {
	return fmt.Sprintf("procurement:po:%d:complete", orderID)
}
