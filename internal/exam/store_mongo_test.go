package exam

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Set MONGO_TEST_URI (e.g. mongodb://localhost:27017) to run these.
func TestMongoStoreContract(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	n := 0
	runStoreContract(t, func(t *testing.T) Store {
		n++
		mdb := client.Database(fmt.Sprintf("exams_test_%d_%d", time.Now().UnixNano(), n))
		t.Cleanup(func() { _ = mdb.Drop(context.Background()) })
		s := NewMongoStore(mdb)
		require.NoError(t, s.EnsureIndexes(context.Background()))
		return s
	})
}
