package strike_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strikearr/internal/strike"
)

func TestParseCategoryAcceptsUnderscores(t *testing.T) {
	c, err := strike.ParseCategory("Import_Failed")
	require.NoError(t, err)
	assert.Equal(t, strike.ImportFailed, c)

	_, err = strike.ParseCategory("exploded")
	assert.Error(t, err)
}

func TestEventTypes(t *testing.T) {
	assert.Equal(t, "import-failed-strike", strike.ImportFailed.EventType())
	assert.Equal(t, "stalled-strike", strike.Stalled.EventType())
	assert.Equal(t, "slow-strike", strike.Slow.EventType())
	assert.Equal(t, "queue-item-deleted", strike.QueueItemDeleted.EventType())
	assert.Equal(t, "download-cleaned", strike.DownloadCleaned.EventType())
	assert.Equal(t, "category-changed", strike.CategoryChanged.EventType())
}

func TestSortDeduplicatesCanonically(t *testing.T) {
	got := strike.Sort([]strike.Category{strike.CategoryChanged, strike.Slow, strike.ImportFailed, strike.Slow})
	assert.Equal(t, []strike.Category{strike.ImportFailed, strike.Slow, strike.CategoryChanged}, got)
	assert.Nil(t, strike.Sort(nil))

	reversed := []strike.Category{
		strike.CategoryChanged, strike.DownloadCleaned, strike.QueueItemDeleted,
		strike.Slow, strike.Stalled, strike.ImportFailed, strike.Stalled,
	}
	assert.Equal(t, []strike.Category{
		strike.ImportFailed, strike.Stalled, strike.Slow,
		strike.QueueItemDeleted, strike.DownloadCleaned, strike.CategoryChanged,
	}, strike.Sort(reversed))
}
