// Package common: errors.go defines the sentinel errors shared by every
// feature of the bot. Handlers use errors.Is on them to pick the message
// that is shown to the user.
package common

import "errors"

// Directory errors
var (
	// ErrUserNotFound: no directory row for the given id or login
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser: a row for this member already exists
	ErrDuplicateUser = errors.New("user is already in the database")
	// ErrInvalidStatus: status outside unknown/pending/verified/kicked/banned
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidGroup: group is not one of the configured groups
	ErrInvalidGroup = errors.New("invalid group")
	// ErrInvalidKey: update key is not login/group/status/comment
	ErrInvalidKey = errors.New("invalid key")
	// ErrRoleAssignment: the row was written but roles could not be granted
	ErrRoleAssignment = errors.New("could not assign roles")
)

// Karma errors
var (
	// ErrStoreWrite: a privileged write did not reach the database
	ErrStoreWrite = errors.New("database write failed")
	// ErrOffsetRange: leaderboard offset outside (0, 100000000)
	ErrOffsetRange = errors.New("offset out of range")
)

// Argument errors
var (
	// ErrInvalidMessageRef: the argument does not point to a message
	ErrInvalidMessageRef = errors.New("invalid message reference")
	// ErrInvalidMember: the argument is not a member mention or id
	ErrInvalidMember = errors.New("invalid member")
	// ErrForbidden: the invoking member lacks the rights for the command
	ErrForbidden = errors.New("insufficient rights")
)

// External API errors
var (
	// ErrNotFound: the remote service does not know the entity
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized: the remote service rejected our token
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUpstream: any other failure of the remote service
	ErrUpstream = errors.New("upstream error")
)
