package database

import (
	"context"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo connects to MongoDB and returns the database handle named
// in the URI (or "classboard" when the URI carries no database name).
// The handle is passed into the store adapter explicitly; nothing in this
// package keeps ambient state.
func ConnectMongo(mongoURI string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, err
	}

	dbName := "classboard"
	if parts := strings.Split(mongoURI, "/"); len(parts) > 3 {
		if name := strings.Split(parts[len(parts)-1], "?")[0]; name != "" {
			dbName = name
		}
	}

	log.Println("✅ Connected to MongoDB")
	return client, client.Database(dbName), nil
}

// DisconnectMongo closes the client with a bounded timeout.
func DisconnectMongo(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}
