// Package staff decides who may run operator commands and answer priority prompts.
package staff

import (
	"context"
	"log/slog"
	"strings"

	"github.com/phrazzld/tasktracker/internal/platform/logger"
)

// Provider answers whether a user is staff.
type Provider interface {
	IsStaff(ctx context.Context, userID int64, username string) (bool, error)
}

// Static is the configured allow-list.
type Static struct {
	usernames map[string]bool
	userIDs   map[int64]bool
}

var _ Provider = (*Static)(nil)

// NewStatic builds an allow-list. Usernames match case-insensitively, with or without "@".
func NewStatic(usernames []string, userIDs []int64) *Static {
	s := &Static{
		usernames: make(map[string]bool, len(usernames)),
		userIDs:   make(map[int64]bool, len(userIDs)),
	}
	for _, u := range usernames {
		if n := normalize(u); n != "" {
			s.usernames[n] = true
		}
	}
	for _, id := range userIDs {
		s.userIDs[id] = true
	}
	return s
}

// IsStaff implements Provider.
func (s *Static) IsStaff(_ context.Context, userID int64, username string) (bool, error) {
	if userID != 0 && s.userIDs[userID] {
		return true, nil
	}
	n := normalize(username)
	return n != "" && s.usernames[n], nil
}

// Checker queries providers in order and stops at the first positive answer.
// A failing provider is logged and skipped, so the allow-list keeps working
// when the database is down.
type Checker struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChecker creates a Checker. Nil providers are ignored.
func NewChecker(log *slog.Logger, providers ...Provider) *Checker {
	if log == nil {
		log = slog.Default()
	}
	c := &Checker{logger: log.With("component", "staff_checker")}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// IsStaff reports whether any provider recognizes the user.
func (c *Checker) IsStaff(ctx context.Context, userID int64, username string) bool {
	for i, p := range c.providers {
		ok, err := p.IsStaff(ctx, userID, username)
		if err != nil {
			logger.FromContextOrDefault(ctx, c.logger).Warn("staff provider failed",
				"provider", i,
				"user_id", userID,
				"error", err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}
