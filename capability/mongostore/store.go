// Package mongostore persists AgentCapabilityAdvertisement snapshots so a
// CapabilityRegistry can rehydrate after a restart instead of waiting for
// every agent to re-advertise. Grounded on the teacher's
// registry/store/mongo.Store (upsert-by-id, ReplaceOne with SetUpsert),
// ported to the v2 driver and the Advertisement shape.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"goa.design/swarmassistant/capability"
)

// ErrNotFound is returned by Get for an unknown agentId.
var ErrNotFound = errors.New("mongostore: advertisement not found")

// Store persists Advertisement snapshots keyed by agentId.
type Store struct {
	coll *mongodriver.Collection
}

type advertisementDocument struct {
	AgentID      string          `bson:"_id"`
	Endpoint     string          `bson:"endpoint"`
	Capabilities []string        `bson:"capabilities"`
	CurrentLoad  int             `bson:"current_load"`
	SandboxLevel string          `bson:"sandbox_level"`
	Provider     providerDoc     `bson:"provider"`
	Budget       budgetDoc       `bson:"budget"`
}

type providerDoc struct {
	Adapter string `bson:"adapter"`
	Type    string `bson:"type"`
}

type budgetDoc struct {
	Type             string  `bson:"type"`
	TotalTokens      uint64  `bson:"total_tokens"`
	UsedTokens       uint64  `bson:"used_tokens"`
	WarningThreshold float64 `bson:"warning_threshold"`
	HardLimit        float64 `bson:"hard_limit"`
}

// New wraps a connected collection as a Store.
func New(collection *mongodriver.Collection) *Store {
	return &Store{coll: collection}
}

// Save upserts ad by AgentID.
func (s *Store) Save(ctx context.Context, ad capability.Advertisement) error {
	doc := toDocument(ad)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": ad.AgentID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongostore: save advertisement %q: %w", ad.AgentID, err)
	}
	return nil
}

// Get retrieves the advertisement for agentID.
func (s *Store) Get(ctx context.Context, agentID string) (capability.Advertisement, error) {
	var doc advertisementDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": agentID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return capability.Advertisement{}, ErrNotFound
		}
		return capability.Advertisement{}, fmt.Errorf("mongostore: get advertisement %q: %w", agentID, err)
	}
	return fromDocument(doc), nil
}

// ListAll returns every persisted advertisement, used to rehydrate a
// Registry on startup.
func (s *Store) ListAll(ctx context.Context) ([]capability.Advertisement, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongostore: list advertisements: %w", err)
	}
	defer cur.Close(ctx)

	var docs []advertisementDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: decode advertisements: %w", err)
	}
	out := make([]capability.Advertisement, len(docs))
	for i, doc := range docs {
		out[i] = fromDocument(doc)
	}
	return out, nil
}

// Delete removes the advertisement for agentID.
func (s *Store) Delete(ctx context.Context, agentID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": agentID})
	return err
}

func toDocument(ad capability.Advertisement) advertisementDocument {
	caps := make([]string, 0, len(ad.Capabilities))
	for c := range ad.Capabilities {
		caps = append(caps, c)
	}
	return advertisementDocument{
		AgentID:      ad.AgentID,
		Endpoint:     ad.Endpoint,
		Capabilities: caps,
		CurrentLoad:  ad.CurrentLoad,
		SandboxLevel: string(ad.SandboxLevel),
		Provider:     providerDoc{Adapter: ad.Provider.Adapter, Type: string(ad.Provider.Type)},
		Budget: budgetDoc{
			Type:             ad.Budget.Type,
			TotalTokens:      ad.Budget.TotalTokens,
			UsedTokens:       ad.Budget.UsedTokens,
			WarningThreshold: ad.Budget.WarningThreshold,
			HardLimit:        ad.Budget.HardLimit,
		},
	}
}

func fromDocument(doc advertisementDocument) capability.Advertisement {
	ad := capability.NewAdvertisement(doc.AgentID, doc.Endpoint, doc.Capabilities...)
	ad.CurrentLoad = doc.CurrentLoad
	ad.SandboxLevel = capability.SandboxLevel(doc.SandboxLevel)
	ad.Provider = capability.Provider{Adapter: doc.Provider.Adapter, Type: capability.ProviderType(doc.Provider.Type)}
	ad.Budget = capability.Budget{
		Type:             doc.Budget.Type,
		TotalTokens:      doc.Budget.TotalTokens,
		UsedTokens:       doc.Budget.UsedTokens,
		WarningThreshold: doc.Budget.WarningThreshold,
		HardLimit:        doc.Budget.HardLimit,
	}
	return ad
}
