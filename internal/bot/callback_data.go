package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/phrazzld/tasktracker/internal/domain"
)

// Callback actions.
const (
	actionSelect    = "prio"
	actionDowngrade = "downgrade"
	actionKeep      = "keep_high"
	actionDemote    = "demote"
	actionDelete    = "del"
)

var errBadCallback = errors.New("malformed callback data")

// callbackData is the decoded payload of a prompt button. Row is set only for
// demote and Priority is empty only for delete. The encoded form must stay
// within Telegram's 64-byte callback data limit, which the numeric ids keep.
type callbackData struct {
	Action    string
	PendingID int64
	Priority  domain.Priority
	Row       int
}

// String encodes c in the form parseCallbackData reads.
func (c callbackData) String() string {
	switch c.Action {
	case actionDelete:
		return fmt.Sprintf("%s:%d", c.Action, c.PendingID)
	case actionDemote:
		return fmt.Sprintf("%s:%d:%s:%d", c.Action, c.PendingID, c.Priority, c.Row)
	default:
		return fmt.Sprintf("%s:%d:%s", c.Action, c.PendingID, c.Priority)
	}
}

// parseCallbackData decodes button data. Unknown actions, missing fields and
// non-positive ids return errBadCallback; priorities are validated too.
func parseCallbackData(s string) (callbackData, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return callbackData{}, fmt.Errorf("%w: %q", errBadCallback, s)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return callbackData{}, fmt.Errorf("%w: bad pending id in %q", errBadCallback, s)
	}
	c := callbackData{Action: parts[0], PendingID: id}

	want := 3
	switch c.Action {
	case actionDelete:
		want = 2
	case actionDemote:
		want = 4
	case actionSelect, actionDowngrade, actionKeep:
	default:
		return callbackData{}, fmt.Errorf("%w: unknown action %q", errBadCallback, c.Action)
	}
	if len(parts) != want {
		return callbackData{}, fmt.Errorf("%w: %q", errBadCallback, s)
	}
	if want >= 3 {
		p, err := domain.ParsePriority(parts[2])
		if err != nil {
			return callbackData{}, fmt.Errorf("%w: %v", errBadCallback, err)
		}
		c.Priority = p
	}
	if want == 4 {
		row, err := strconv.Atoi(parts[3])
		if err != nil || row < 2 {
			return callbackData{}, fmt.Errorf("%w: bad row in %q", errBadCallback, s)
		}
		c.Row = row
	}
	return c, nil
}
