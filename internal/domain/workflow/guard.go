package workflow

import "context"

type pendingApprovalsKey struct{}

// WithPendingApprovals records how many approvals of the contract are still
// PENDING, for the guard on IN_REVIEW → APPROVED
func WithPendingApprovals(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, pendingApprovalsKey{}, n)
}

// approvalsSettled permits final approval only when nothing is left to decide.
// A context without a count is treated as settled.
func approvalsSettled(ctx context.Context) bool {
	n, _ := ctx.Value(pendingApprovalsKey{}).(int)
	return n == 0
}
