package repository

import (
	"bytes"
	"context"
	"log"
	"os"
	"testing"

	"github.com/mansoorceksport/imagedrop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// setupTestDB spins up a fresh MongoDB container and returns the database connection
// along with a cleanup function.
func setupTestDB(t *testing.T) (*mongo.Database, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}

	ctx := context.Background()

	mongodbContainer, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("failed to start container: %s", err)
	}

	endpoint, err := mongodbContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(endpoint))
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}

	return mongoClient.Database("test_db"), func() {
		if err := mongoClient.Disconnect(ctx); err != nil {
			log.Printf("failed to disconnect mongo: %v", err)
		}
		if err := mongodbContainer.Terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %v", err)
		}
	}
}

func TestMongoImageRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewMongoImageRepository(db)

	records := []*domain.ImageRecord{
		{Name: "1.png", URL: "http://localhost:5000/uploads/1.png", Label: "cat", OriginalName: "a.png", ContentType: "image/png", Size: 3},
		{Name: "2.jpg", URL: "http://localhost:5000/uploads/2.jpg", Label: "dog", OriginalName: "b.jpg", ContentType: "image/jpeg", Size: 4},
	}
	require.NoError(t, repo.CreateMany(ctx, records))
	for _, r := range records {
		assert.NotEmpty(t, r.ID)
		assert.False(t, r.UploadedAt.IsZero())
	}

	labels, err := repo.GetLabelsByNames(ctx, []string{"1.png", "2.jpg", "unknown.gif"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1.png": "cat", "2.jpg": "dog"}, labels)

	// duplicate names are rejected by the unique index
	err = repo.CreateMany(ctx, []*domain.ImageRecord{{Name: "1.png", Label: "again"}})
	assert.Error(t, err)

	require.NoError(t, repo.CreateMany(ctx, nil))
}

func TestMongoImageRepositoryReportsIndexFailure(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	// same key, conflicting options: the unique index cannot be created
	_, err := db.Collection(imageCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetName("name_1"),
	})
	require.NoError(t, err)

	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	repo := NewMongoImageRepository(db)
	assert.Contains(t, logs.String(), "failed to create unique name index")

	// the repository stays usable
	require.NoError(t, repo.CreateMany(ctx, []*domain.ImageRecord{{Name: "1.png", Label: "cat"}}))
}
