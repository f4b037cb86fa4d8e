package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mansoorceksport/imagedrop/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	imageCollectionName = "images"
)

// MongoImageRepository implements domain.ImageRepository using MongoDB
type MongoImageRepository struct {
	collection *mongo.Collection
}

// NewMongoImageRepository creates a new MongoDB repository
func NewMongoImageRepository(db *mongo.Database) *MongoImageRepository {
	collection := db.Collection(imageCollectionName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stored names are unique per backend; the index makes a collision loud
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		log.Printf("Warning: failed to create unique name index on %s: %v", imageCollectionName, err)
	}

	return &MongoImageRepository{
		collection: collection,
	}
}

// CreateMany saves the records of one upload
func (r *MongoImageRepository) CreateMany(ctx context.Context, records []*domain.ImageRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now()
	docs := make([]interface{}, 0, len(records))
	for _, record := range records {
		if record.ID == "" {
			record.ID = primitive.NewObjectID().Hex()
		}
		if record.UploadedAt.IsZero() {
			record.UploadedAt = now
		}
		docs = append(docs, record)
	}

	_, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to insert image records: %w", err)
	}

	return nil
}

// GetLabelsByNames returns name -> label for the names it knows
func (r *MongoImageRepository) GetLabelsByNames(ctx context.Context, names []string) (map[string]string, error) {
	labels := make(map[string]string, len(names))
	if len(names) == 0 {
		return labels, nil
	}

	filter := bson.M{"name": bson.M{"$in": names}}
	opts := options.Find().SetProjection(bson.M{"name": 1, "label": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find image records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*domain.ImageRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode image records: %w", err)
	}

	for _, record := range records {
		labels[record.Name] = record.Label
	}
	return labels, nil
}
