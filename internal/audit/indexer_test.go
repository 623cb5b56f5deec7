package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexer_NilIsSafe(t *testing.T) {
	t.Parallel()

	var ix *Indexer
	ix.Record(context.Background(), Entry{Event: "user_logged_in", UserID: "u1"})

	assert.Nil(t, NewIndexer(nil))
}
