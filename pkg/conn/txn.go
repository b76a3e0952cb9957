package conn

import (
	"context"
	"fmt"

	"github.com/wireql/wireql/pkg/sqlerr"
)

var errNoTransaction = sqlerr.New(sqlerr.KindQuery, "no transaction in progress")

// Transaction bookkeeping. Only the outermost Begin/Commit pair issues
// real transaction statements; inner pairs become savepoints when the
// backend supports them and locally tracked no-ops otherwise. Control
// statements travel over the simple query path: mysql-family servers
// refuse to prepare them.

func savepointName(depth int) string {
	return fmt.Sprintf("wireql_sp_%d", depth)
}

// Begin opens a transaction, or a savepoint when one is already open.
func (c *Conn) Begin(ctx context.Context) error {
	switch {
	case c.txnDepth == 0:
		if err := c.Command(ctx, "BEGIN"); err != nil {
			return err
		}
	case c.Capabilities().Savepoints:
		if err := c.Command(ctx, "SAVEPOINT "+savepointName(c.txnDepth)); err != nil {
			return err
		}
	}
	c.txnDepth++
	return nil
}

// Commit commits the outermost transaction or releases the current
// savepoint.
func (c *Conn) Commit(ctx context.Context) error {
	switch {
	case c.txnDepth == 0:
		return errNoTransaction
	case c.txnDepth == 1:
		if err := c.Command(ctx, "COMMIT"); err != nil {
			return err
		}
	case c.Capabilities().Savepoints:
		if err := c.Command(ctx, "RELEASE SAVEPOINT "+savepointName(c.txnDepth-1)); err != nil {
			return err
		}
	}
	c.txnDepth--
	return nil
}

// Rollback rolls back the outermost transaction or rewinds to the current
// savepoint.
func (c *Conn) Rollback(ctx context.Context) error {
	switch {
	case c.txnDepth == 0:
		return errNoTransaction
	case c.txnDepth == 1:
		if err := c.Command(ctx, "ROLLBACK"); err != nil {
			return err
		}
	case c.Capabilities().Savepoints:
		if err := c.Command(ctx, "ROLLBACK TO SAVEPOINT "+savepointName(c.txnDepth-1)); err != nil {
			return err
		}
	}
	c.txnDepth--
	return nil
}

// TxnDepth reports the current nesting depth, zero outside a transaction.
func (c *Conn) TxnDepth() int { return c.txnDepth }

// InTransaction reports whether the connection holds an open transaction.
// The pool refuses to park such a connection as idle.
func (c *Conn) InTransaction() bool { return c.txnDepth > 0 }
