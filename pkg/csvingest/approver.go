package csvingest

import "context"

// Approver confirms destructive steps such as replay emptying ingestion
// folders before it rebuilds them.
//
// Implementations:
//   - ForcedApprover: shows a countdown and approves
//   - InteractiveApprover: asks the user to type the target
type Approver interface {
	// RequestApproval returns true when the operation on target may proceed.
	RequestApproval(ctx context.Context, target string) (bool, error)
}
