// Package archive writes completed orchestration records to durable object
// storage. Objects are laid out by action and UTC day:
//
//	{action}/{yyyy}/{mm}/{dd}/{user_id}_{unix_ts}.json
package archive

import (
	"fmt"
	"time"

	"github.com/vortexartec/gencore/pkg/contracts"
	"github.com/vortexartec/gencore/pkg/models"
)

// ContentType is the media type of archived records.
const ContentType = "application/json"

var (
	_ contracts.ObjectStore = (*S3Store)(nil)
	_ contracts.ObjectStore = (*LocalStore)(nil)
)

// Key returns the object key for a record written at t.
func Key(action models.Action, userID string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s_%d.json", action, t.Year(), int(t.Month()), t.Day(), userID, t.Unix())
}
