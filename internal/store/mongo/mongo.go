// Package mongo implements the store against MongoDB. Balance deltas use
// $inc so concurrent completions on the same account never lose updates, and
// each write batch runs inside one session transaction.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ledgerflow-dev/ledgerflow/internal/model"
	"github.com/ledgerflow-dev/ledgerflow/internal/store"
)

const (
	connectTimeout = 10 * time.Second

	collAccounts     = "accounts"
	collTransactions = "transactions"
	collRules        = "account_rules"
)

// Config holds the MongoDB connection settings.
type Config struct {
	URI      string
	Database string
}

// Store is a MongoDB-backed store.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*Store)(nil)

// Open connects to MongoDB and pings the primary before returning.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database is required")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return &Store{client: client, db: client.Database(cfg.Database)}, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting from mongo: %w", err)
	}
	return nil
}

// CreateAccount inserts a new account document.
func (s *Store) CreateAccount(ctx context.Context, a model.Account) error {
	doc, err := accountToDoc(a)
	if err != nil {
		return err
	}
	if _, err := s.db.Collection(collAccounts).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("account %s: %w", a.ID, store.ErrConflict)
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

// GetAccount returns an account by ID.
func (s *Store) GetAccount(ctx context.Context, id string) (model.Account, error) {
	var doc accountDoc
	err := s.db.Collection(collAccounts).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Account{}, fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("finding account: %w", err)
	}
	return docToAccount(doc)
}

// ListAccounts returns all accounts for a user, oldest first.
func (s *Store) ListAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	filter := bson.M{}
	if userID != "" {
		filter["userId"] = userID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cur, err := s.db.Collection(collAccounts).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.Account
	for cur.Next(ctx) {
		var doc accountDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding account: %w", err)
		}
		a, err := docToAccount(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return out, nil
}

// UpdateAccount replaces an existing account document.
func (s *Store) UpdateAccount(ctx context.Context, a model.Account) error {
	doc, err := accountToDoc(a)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(collAccounts).ReplaceOne(ctx, bson.M{"_id": a.ID}, doc)
	if err != nil {
		return fmt.Errorf("updating account: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("account %s: %w", a.ID, store.ErrNotFound)
	}
	return nil
}

// GetTransaction returns a transaction by ID.
func (s *Store) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	var doc transactionDoc
	err := s.db.Collection(collTransactions).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("finding transaction: %w", err)
	}
	return docToTransaction(doc)
}

// ListTransactions returns transactions matching the filter, newest first.
func (s *Store) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]model.Transaction, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.AccountID != "" {
		filter["$or"] = bson.A{
			bson.M{"sourceAccountId": f.AccountID},
			bson.M{"destinationAccountId": f.AccountID},
		}
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	dateRange := bson.M{}
	if !f.From.IsZero() {
		dateRange["$gte"] = f.From
	}
	if !f.To.IsZero() {
		dateRange["$lte"] = f.To
	}
	if len(dateRange) > 0 {
		filter["date"] = dateRange
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})

	cur, err := s.db.Collection(collTransactions).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.Transaction
	for cur.Next(ctx) {
		var doc transactionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding transaction: %w", err)
		}
		tx, err := docToTransaction(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}
	return out, nil
}

// CreateRule inserts a new rule document.
func (s *Store) CreateRule(ctx context.Context, r model.AccountRule) error {
	doc, err := ruleToDoc(r)
	if err != nil {
		return err
	}
	if _, err := s.db.Collection(collRules).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("rule %s: %w", r.ID, store.ErrConflict)
		}
		return fmt.Errorf("inserting rule: %w", err)
	}
	return nil
}

// GetRule returns a rule by ID.
func (s *Store) GetRule(ctx context.Context, id string) (model.AccountRule, error) {
	var doc ruleDoc
	err := s.db.Collection(collRules).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.AccountRule{}, fmt.Errorf("rule %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return model.AccountRule{}, fmt.Errorf("finding rule: %w", err)
	}
	return docToRule(doc)
}

// ListRules returns rules matching the filter, oldest first.
func (s *Store) ListRules(ctx context.Context, f store.RuleFilter) ([]model.AccountRule, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.AccountID != "" {
		filter["sourceAccountId"] = f.AccountID
	}
	if f.References != "" {
		filter["$or"] = bson.A{
			bson.M{"sourceAccountId": f.References},
			bson.M{"destinationAccountId": f.References},
		}
	}
	if f.Trigger != "" {
		filter["triggerType"] = string(f.Trigger)
	}
	if f.ActiveOnly {
		filter["isActive"] = true
	}
	if !f.DueBefore.IsZero() {
		filter["nextExecutionDate"] = bson.M{"$lte": f.DueBefore}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cur, err := s.db.Collection(collRules).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.AccountRule
	for cur.Next(ctx) {
		var doc ruleDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding rule: %w", err)
		}
		r, err := docToRule(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}
	return out, nil
}

// UpdateRule replaces an existing rule document.
func (s *Store) UpdateRule(ctx context.Context, r model.AccountRule) error {
	doc, err := ruleToDoc(r)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(collRules).ReplaceOne(ctx, bson.M{"_id": r.ID}, doc)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("rule %s: %w", r.ID, store.ErrNotFound)
	}
	return nil
}

// MarkRuleExecuted bumps execution bookkeeping with a single atomic update.
func (s *Store) MarkRuleExecuted(ctx context.Context, id string, executedAt time.Time, next *time.Time) error {
	set := bson.M{"lastExecutedAt": executedAt, "updatedAt": executedAt}
	if next != nil {
		set["nextExecutionDate"] = *next
	}
	update := bson.M{
		"$inc": bson.M{"executionCount": 1},
		"$set": set,
	}
	res, err := s.db.Collection(collRules).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("marking rule executed: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("rule %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// Apply runs every op inside one session transaction. Balance deltas use
// $inc on the account document, never a read followed by a write.
func (s *Store) Apply(ctx context.Context, ops []store.Op) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, op := range ops {
			if err := s.applyOne(sc, op); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("applying batch: %w", err)
	}
	return nil
}

func (s *Store) applyOne(ctx mongo.SessionContext, op store.Op) error {
	switch op := op.(type) {
	case store.PutTransaction:
		doc, err := transactionToDoc(op.Transaction)
		if err != nil {
			return err
		}
		opts := options.Replace().SetUpsert(true)
		if _, err := s.db.Collection(collTransactions).ReplaceOne(ctx, bson.M{"_id": op.Transaction.ID}, doc, opts); err != nil {
			return fmt.Errorf("writing transaction %s: %w", op.Transaction.ID, err)
		}
		return nil

	case store.RemoveTransaction:
		res, err := s.db.Collection(collTransactions).DeleteOne(ctx, bson.M{"_id": op.ID})
		if err != nil {
			return fmt.Errorf("removing transaction %s: %w", op.ID, err)
		}
		if res.DeletedCount == 0 {
			return fmt.Errorf("transaction %s: %w", op.ID, store.ErrNotFound)
		}
		return nil

	case store.AddBalance:
		current, err := toDecimal128(op.Current)
		if err != nil {
			return err
		}
		probable, err := toDecimal128(op.Probable)
		if err != nil {
			return err
		}
		update := bson.M{"$inc": bson.M{
			"currentBalance":  current,
			"probableBalance": probable,
		}}
		res, err := s.db.Collection(collAccounts).UpdateOne(ctx, bson.M{"_id": op.AccountID}, update)
		if err != nil {
			return fmt.Errorf("incrementing balance of %s: %w", op.AccountID, err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("account %s: %w", op.AccountID, store.ErrNotFound)
		}
		return nil

	default:
		return fmt.Errorf("unknown op type %T", op)
	}
}
