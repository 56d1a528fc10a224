// store/mongo.go
package store

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kimtee92/PropMan/models"
)

// Mongo is the production Store backed by a Mongo database.
type Mongo struct {
	users      mongoUsers
	portfolios mongoPortfolios
	properties mongoProperties
	fields     mongoFields
	documents  mongoDocuments
	notes      mongoNotes
	approvals  mongoApprovals
	audits     mongoAudits
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		users:      mongoUsers{db.Collection("users")},
		portfolios: mongoPortfolios{db.Collection("portfolios")},
		properties: mongoProperties{db.Collection("properties")},
		fields:     mongoFields{db.Collection("fields")},
		documents:  mongoDocuments{db.Collection("documents")},
		notes:      mongoNotes{db.Collection("notes")},
		approvals:  mongoApprovals{db.Collection("approvals")},
		audits:     mongoAudits{db.Collection("auditlogs")},
	}
}

func (m *Mongo) Users() UserStore           { return m.users }
func (m *Mongo) Portfolios() PortfolioStore { return m.portfolios }
func (m *Mongo) Properties() PropertyStore  { return m.properties }
func (m *Mongo) Fields() FieldStore         { return m.fields }
func (m *Mongo) Documents() DocumentStore   { return m.documents }
func (m *Mongo) Notes() NoteStore           { return m.notes }
func (m *Mongo) Approvals() ApprovalStore   { return m.approvals }
func (m *Mongo) Audits() AuditStore         { return m.audits }

func mapErr(err error) error {
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	return err
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
}

// ---- users ----

type mongoUsers struct{ c *mongo.Collection }

func (s mongoUsers) Insert(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := s.c.InsertOne(ctx, u)
	return err
}

func (s mongoUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s mongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&u)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s mongoUsers) List(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s mongoUsers) Update(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now().UTC()
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s mongoUsers) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s mongoUsers) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	out := map[primitive.ObjectID]models.UserSummary{}
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.Summary()
	}
	return out, nil
}

// ---- portfolios ----

type mongoPortfolios struct{ c *mongo.Collection }

func (s mongoPortfolios) Insert(ctx context.Context, p *models.Portfolio) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := s.c.InsertOne(ctx, p)
	return err
}

func (s mongoPortfolios) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Portfolio, error) {
	var p models.Portfolio
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s mongoPortfolios) list(ctx context.Context, filter bson.M) ([]models.Portfolio, error) {
	cursor, err := s.c.Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	portfolios := []models.Portfolio{}
	if err := cursor.All(ctx, &portfolios); err != nil {
		return nil, err
	}
	return portfolios, nil
}

func (s mongoPortfolios) ListAll(ctx context.Context) ([]models.Portfolio, error) {
	return s.list(ctx, bson.M{})
}

func (s mongoPortfolios) ListForMember(ctx context.Context, userID primitive.ObjectID) ([]models.Portfolio, error) {
	return s.list(ctx, bson.M{"$or": []bson.M{
		{"owners": userID},
		{"managers": userID},
		{"viewers": userID},
	}})
}

func (s mongoPortfolios) Update(ctx context.Context, p *models.Portfolio) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s mongoPortfolios) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- properties ----

type mongoProperties struct{ c *mongo.Collection }

func (s mongoProperties) Insert(ctx context.Context, p *models.Property) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := s.c.InsertOne(ctx, p)
	return err
}

func (s mongoProperties) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Property, error) {
	var p models.Property
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s mongoProperties) list(ctx context.Context, filter bson.M) ([]models.Property, error) {
	cursor, err := s.c.Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	properties := []models.Property{}
	if err := cursor.All(ctx, &properties); err != nil {
		return nil, err
	}
	return properties, nil
}

func (s mongoProperties) ListByPortfolio(ctx context.Context, portfolioID primitive.ObjectID) ([]models.Property, error) {
	return s.list(ctx, bson.M{"portfolioId": portfolioID})
}

func (s mongoProperties) ListPending(ctx context.Context) ([]models.Property, error) {
	return s.list(ctx, bson.M{"status": models.PropertyStatusPending})
}

func (s mongoProperties) CountByPortfolio(ctx context.Context, portfolioID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"portfolioId": portfolioID})
}

func (s mongoProperties) Update(ctx context.Context, p *models.Property) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s mongoProperties) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- fields ----

type mongoFields struct{ c *mongo.Collection }

func (s mongoFields) Insert(ctx context.Context, f *models.DynamicField) error {
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	_, err := s.c.InsertOne(ctx, f)
	return err
}

func (s mongoFields) FindByID(ctx context.Context, id primitive.ObjectID) (*models.DynamicField, error) {
	var f models.DynamicField
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		return nil, mapErr(err)
	}
	return &f, nil
}

func (s mongoFields) list(ctx context.Context, filter bson.M) ([]models.DynamicField, error) {
	cursor, err := s.c.Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	fields := []models.DynamicField{}
	if err := cursor.All(ctx, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (s mongoFields) ListByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.DynamicField, error) {
	return s.list(ctx, bson.M{"propertyId": propertyID})
}

func (s mongoFields) ListPending(ctx context.Context) ([]models.DynamicField, error) {
	return s.list(ctx, bson.M{"status": models.StatusPending})
}

func (s mongoFields) Update(ctx context.Context, f *models.DynamicField) error {
	f.UpdatedAt = time.Now().UTC()
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": f.ID}, f)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s mongoFields) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s mongoFields) DeleteByProperty(ctx context.Context, propertyID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"propertyId": propertyID})
	return err
}

// ---- documents ----

type mongoDocuments struct{ c *mongo.Collection }

func (s mongoDocuments) Insert(ctx context.Context, d *models.Document) error {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	_, err := s.c.InsertOne(ctx, d)
	return err
}

func (s mongoDocuments) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Document, error) {
	var d models.Document
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (s mongoDocuments) list(ctx context.Context, filter bson.M) ([]models.Document, error) {
	cursor, err := s.c.Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s mongoDocuments) ListByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.Document, error) {
	return s.list(ctx, bson.M{"propertyId": propertyID})
}

func (s mongoDocuments) ListPending(ctx context.Context) ([]models.Document, error) {
	return s.list(ctx, bson.M{"status": models.StatusPending})
}

func (s mongoDocuments) Update(ctx context.Context, d *models.Document) error {
	d.UpdatedAt = time.Now().UTC()
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": d.ID}, d)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s mongoDocuments) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s mongoDocuments) DeleteByProperty(ctx context.Context, propertyID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"propertyId": propertyID})
	return err
}

// ---- notes ----

type mongoNotes struct{ c *mongo.Collection }

func (s mongoNotes) Insert(ctx context.Context, n *models.Note) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	n.CreatedAt = time.Now().UTC()
	_, err := s.c.InsertOne(ctx, n)
	return err
}

func (s mongoNotes) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Note, error) {
	var n models.Note
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		return nil, mapErr(err)
	}
	return &n, nil
}

func (s mongoNotes) ListByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.Note, error) {
	cursor, err := s.c.Find(ctx, bson.M{"propertyId": propertyID}, newestFirst())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	notes := []models.Note{}
	if err := cursor.All(ctx, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (s mongoNotes) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s mongoNotes) DeleteByProperty(ctx context.Context, propertyID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"propertyId": propertyID})
	return err
}

// ---- approvals ----

type mongoApprovals struct{ c *mongo.Collection }

func (s mongoApprovals) Insert(ctx context.Context, a *models.ApprovalRequest) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := s.c.InsertOne(ctx, a)
	return err
}

func (s mongoApprovals) FindByID(ctx context.Context, id primitive.ObjectID) (*models.ApprovalRequest, error) {
	var a models.ApprovalRequest
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (s mongoApprovals) FindPending(ctx context.Context, kind string, refID primitive.ObjectID, action string) (*models.ApprovalRequest, error) {
	var a models.ApprovalRequest
	err := s.c.FindOne(ctx, bson.M{
		"type":   kind,
		"refId":  refID,
		"action": action,
		"status": models.StatusPending,
	}).Decode(&a)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (s mongoApprovals) List(ctx context.Context, status string) ([]models.ApprovalRequest, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cursor, err := s.c.Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	approvals := []models.ApprovalRequest{}
	if err := cursor.All(ctx, &approvals); err != nil {
		return nil, err
	}
	return approvals, nil
}

func (s mongoApprovals) Update(ctx context.Context, a *models.ApprovalRequest) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": a.ID}, a)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- audit logs ----

type mongoAudits struct{ c *mongo.Collection }

func (s mongoAudits) Insert(ctx context.Context, e *models.AuditLog) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, e)
	return err
}

func (s mongoAudits) List(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	filter := bson.M{}
	if f.Action != "" {
		filter["action"] = bson.M{"$regex": regexp.QuoteMeta(f.Action), "$options": "i"}
	}
	if f.TargetType != "" {
		filter["targetType"] = f.TargetType
	}
	if len(f.UserIDs) > 0 {
		filter["userId"] = bson.M{"$in": f.UserIDs}
	}
	timeFilter := bson.M{}
	if !f.From.IsZero() {
		timeFilter["$gte"] = f.From
	}
	if !f.To.IsZero() {
		timeFilter["$lt"] = f.To
	}
	if len(timeFilter) > 0 {
		filter["timestamp"] = timeFilter
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []models.AuditLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
