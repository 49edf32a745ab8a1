package notify

import "context"

// Gateway delivers the registration link for an invite. The call is
// synchronous from the workflow's point of view; transport mechanics live
// behind this port. Implementations must respect ctx deadlines.
type Gateway interface {
	SendInvite(ctx context.Context, email, link string) error
}
