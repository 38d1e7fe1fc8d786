package git

import (
	"context"
	"fmt"
)

// Checkout restores the given paths in the working tree from the given
// commit.
func (r *Repository) Checkout(ctx context.Context, hash string, paths ...string) error {
	args := append([]string{"checkout", hash, "--"}, paths...)
	if _, err := r.git(ctx, args...); err != nil {
		return fmt.Errorf("failed to check out %s: %w", hash, err)
	}
	return nil
}

// CheckoutAll restores the whole working tree from the given commit.
func (r *Repository) CheckoutAll(ctx context.Context, hash string) error {
	return r.Checkout(ctx, hash, ".")
}

// HardReset discards all changes in the working tree.
func (r *Repository) HardReset(ctx context.Context) error {
	if _, err := r.git(ctx, "reset", "--hard"); err != nil {
		return fmt.Errorf("failed to reset the working tree: %w", err)
	}
	return nil
}
