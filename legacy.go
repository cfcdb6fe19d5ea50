package pennant

import "context"

// IsEnabledForContext evaluates flagKey for a target passed positionally.
//
// Deprecated: use IsEnabled with WithTargetID.
func (c *Client) IsEnabledForContext(ctx context.Context, flagKey string, def bool, contextID string) (bool, error) {
	return c.IsEnabled(ctx, flagKey, def, WithTargetID(contextID))
}
