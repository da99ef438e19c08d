package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	gomssql "github.com/microsoft/go-mssqldb"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
)

// SQL Server error numbers (read-relevant only)
// Full list: https://learn.microsoft.com/sql/relational-databases/errors-events/database-engine-events-and-errors
const (
	errNumPermissionDenied     = 229 // SELECT permission denied on object
	errNumColumnPermission     = 230 // column-level permission denied
	errNumViewDefinitionDenied = 297 // user lacks VIEW DEFINITION
	errNumServerPermission     = 300 // server-level permission denied

	errNumInvalidObject = 208  // invalid object name
	errNumMissingProc   = 2812 // could not find stored procedure
	errNumInvalidSchema = 4902 // object does not exist or lacks permissions

	errNumCrossDBUnsupported = 40515 // reference not supported in this version of SQL Server

	errNumLoginFailed     = 18456 // login failed for user
	errNumLoginFailedComm = 18452 // login from untrusted domain
	errNumCannotOpenDB    = 4060  // cannot open database requested by the login
)

// mapError translates go-mssqldb native errors into *errs.Error.
//
// Classification is strict on error numbers; message substrings are consulted
// only as a last resort, for drivers and gateways that flatten the original
// error into text.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	// Already classified upstream (e.g. token provider failures).
	if errs.Kind(err) != errs.ErrKindUnknown {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var sqlErr gomssql.Error
	if errors.As(err, &sqlErr) {
		kind := classifyNumber(sqlErr.Number)
		if kind == errs.ErrKindUnknown {
			kind = classifyMessage(sqlErr.Message)
		}
		if kind == errs.ErrKindUnknown {
			kind = errs.ErrKindQueryFailed
		}
		return errs.Wrap(kind, fmt.Sprintf("%s: %s", msg, sqlErr.Message), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		}
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	if kind := classifyMessage(err.Error()); kind != errs.ErrKindUnknown {
		return errs.Wrap(kind, msg, err)
	}

	// Anything else that reached us without a server error number failed at
	// the transport layer (TLS, DNS, token handshake).
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

func classifyNumber(number int32) errs.ErrKind {
	switch number {
	case errNumPermissionDenied, errNumColumnPermission, errNumViewDefinitionDenied, errNumServerPermission:
		return errs.ErrKindPermissionDenied
	case errNumInvalidObject, errNumMissingProc, errNumInvalidSchema:
		return errs.ErrKindNotFound
	case errNumCrossDBUnsupported:
		return errs.ErrKindIncompatible
	case errNumLoginFailed, errNumLoginFailedComm, errNumCannotOpenDB:
		return errs.ErrKindAuthFailed
	default:
		return errs.ErrKindUnknown
	}
}

func classifyMessage(message string) errs.ErrKind {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "permission was denied") || strings.Contains(m, "permission denied"):
		return errs.ErrKindPermissionDenied
	case strings.Contains(m, "not supported"):
		return errs.ErrKindIncompatible
	case strings.Contains(m, "login failed"):
		return errs.ErrKindAuthFailed
	default:
		return errs.ErrKindUnknown
	}
}
