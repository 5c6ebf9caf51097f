package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"logitrack/internal/models"
)

func TestIndexesCoverEveryCollection(t *testing.T) {
	indexes := Indexes()
	for _, table := range models.Tables {
		if table == models.TableProfiles {
			continue
		}
		assert.NotEmpty(t, indexes[table], "collection %s has no indexes", table)
	}
}

func TestConnect_RejectsInvalidURI(t *testing.T) {
	_, err := Connect("not-a-uri", "")
	assert.Error(t, err)
}

// The driver connects lazily, so a client pointed at a closed port can be
// created and torn down without a server.
func TestDisconnect_ClosesAnUnusedClient(t *testing.T) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)
	assert.NoError(t, Disconnect(client))
}
