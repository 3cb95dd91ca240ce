package repo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/swagatgroup/swagatodisha-sub003/app/model"
)

const applicationCollection = "applications"

var (
	ErrNotFound      = errors.New("application not found")
	ErrGuardMismatch = errors.New("application changed concurrently")
	ErrDuplicate     = errors.New("application already exists")
)

type GroupKey string

const (
	GroupByStatus        GroupKey = "status"
	GroupBySubmitterRole GroupKey = "submitterRole"
	GroupByCourse        GroupKey = "courseDetails.course"
	GroupByMonth         GroupKey = "month"
)

// Page limits a Find. A zero Limit returns every match.
type Page struct {
	Skip  int64
	Limit int64
}

// Guard is the state an application must still be in for a transition to apply.
type Guard struct {
	Status      model.ApplicationStatus
	SubmittedBy string
}

type Resubmission struct {
	At     time.Time
	Reason string
}

// Change is the complete effect of one workflow transition. It is applied
// atomically or not at all.
type Change struct {
	Status          model.ApplicationStatus
	Entry           model.WorkflowEntry
	ReviewInfo      *model.ReviewInfo
	ClearReviewInfo bool
	Resubmission    *Resubmission
	SubmittedAt     *time.Time
	UpdatedAt       time.Time
}

type ApplicationRepository interface {
	Create(ctx context.Context, app *model.Application) error
	FindByApplicationID(ctx context.Context, applicationID string) (*model.Application, error)
	Find(ctx context.Context, f ApplicationFilter, page Page) ([]model.Application, error)
	Count(ctx context.Context, f ApplicationFilter) (int64, error)
	CountBy(ctx context.Context, f ApplicationFilter, key GroupKey) ([]model.StatItem, error)
	ResubmissionTotals(ctx context.Context, f ApplicationFilter) (model.ResubmissionStats, error)
	// Transition applies change only if the application still satisfies guard.
	// It returns ErrNotFound for an unknown id and ErrGuardMismatch when the
	// guard no longer holds.
	Transition(ctx context.Context, applicationID string, guard Guard, change Change) (*model.Application, error)
}

type MongoApplicationRepo struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoApplicationRepo(mongoDB *mongo.Database, timeout time.Duration) *MongoApplicationRepo {
	return &MongoApplicationRepo{coll: mongoDB.Collection(applicationCollection), timeout: timeout}
}

func (r *MongoApplicationRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// EnsureIndexes creates the indexes the workflow and listing queries rely on.
func (r *MongoApplicationRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "applicationId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "submittedAt", Value: -1}}},
		{Keys: bson.D{{Key: fieldRegistrationDate, Value: 1}}},
		{Keys: bson.D{{Key: fieldCreatedAt, Value: 1}}},
		{Keys: bson.D{{Key: "submittedBy", Value: 1}}},
	})
	return errors.Wrap(err, "creating application indexes")
}

func (r *MongoApplicationRepo) Create(ctx context.Context, app *model.Application) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if app.WorkflowHistory == nil {
		app.WorkflowHistory = []model.WorkflowEntry{}
	}
	res, err := r.coll.InsertOne(ctx, app)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "inserting application")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		app.ID = oid
	}
	return nil
}

func (r *MongoApplicationRepo) FindByApplicationID(ctx context.Context, applicationID string) (*model.Application, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var app model.Application
	err := r.coll.FindOne(ctx, bson.M{"applicationId": applicationID}).Decode(&app)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding application")
	}
	return &app, nil
}

func (r *MongoApplicationRepo) Find(ctx context.Context, f ApplicationFilter, page Page) ([]model.Application, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}, {Key: "_id", Value: 1}})
	if page.Skip > 0 {
		opts.SetSkip(page.Skip)
	}
	if page.Limit > 0 {
		opts.SetLimit(page.Limit)
	}

	cursor, err := r.coll.Find(ctx, f.ToBSON(), opts)
	if err != nil {
		return nil, errors.Wrap(err, "listing applications")
	}
	defer cursor.Close(ctx)

	apps := []model.Application{}
	if err := cursor.All(ctx, &apps); err != nil {
		return nil, errors.Wrap(err, "decoding applications")
	}
	return apps, nil
}

func (r *MongoApplicationRepo) Count(ctx context.Context, f ApplicationFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, f.ToBSON())
	return n, errors.Wrap(err, "counting applications")
}

func (r *MongoApplicationRepo) CountBy(ctx context.Context, f ApplicationFilter, key GroupKey) ([]model.StatItem, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var groupID interface{} = "$" + string(key)
	if key == GroupByMonth {
		groupID = bson.M{"$dateToString": bson.M{"format": "%Y-%m", "date": "$submittedAt"}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: f.ToBSON()}},
		{{Key: "$group", Value: bson.M{"_id": groupID, "count": bson.M{"$sum": 1}}}},
		{{Key: "$match", Value: bson.M{"_id": bson.M{"$ne": nil}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrapf(err, "grouping applications by %s", key)
	}
	defer cursor.Close(ctx)

	items := []model.StatItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, errors.Wrap(err, "decoding application stats")
	}
	return items, nil
}

func (r *MongoApplicationRepo) ResubmissionTotals(ctx context.Context, f ApplicationFilter) (model.ResubmissionStats, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: f.ToBSON()}},
		{{Key: "$group", Value: bson.M{
			"_id":                nil,
			"resubmitted":        bson.M{"$sum": bson.M{"$cond": bson.A{"$resubmissionInfo.isResubmission", 1, 0}}},
			"totalResubmissions": bson.M{"$sum": "$resubmissionInfo.resubmissionCount"},
		}}},
	}

	var stats model.ResubmissionStats
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return stats, errors.Wrap(err, "aggregating resubmissions")
	}
	defer cursor.Close(ctx)

	if cursor.Next(ctx) {
		var row struct {
			Resubmitted        int64 `bson:"resubmitted"`
			TotalResubmissions int64 `bson:"totalResubmissions"`
		}
		if err := cursor.Decode(&row); err != nil {
			return stats, errors.Wrap(err, "decoding resubmission totals")
		}
		stats.Resubmitted = row.Resubmitted
		stats.TotalResubmissions = row.TotalResubmissions
	}
	return stats, errors.Wrap(cursor.Err(), "reading resubmission totals")
}

// transitionQuery builds the guarded filter and the update document applied
// by Transition.
func transitionQuery(applicationID string, guard Guard, change Change) (bson.M, bson.M) {
	filter := bson.M{"applicationId": applicationID, "status": guard.Status}
	if guard.SubmittedBy != "" {
		filter["submittedBy"] = guard.SubmittedBy
	}

	set := bson.M{"status": change.Status, "updatedAt": change.UpdatedAt}
	if change.ReviewInfo != nil {
		set["reviewInfo"] = change.ReviewInfo
	}
	if change.SubmittedAt != nil {
		set["submittedAt"] = *change.SubmittedAt
	}
	update := bson.M{
		"$push": bson.M{"workflowHistory": change.Entry},
	}
	if change.ClearReviewInfo {
		update["$unset"] = bson.M{"reviewInfo": ""}
	}
	if rs := change.Resubmission; rs != nil {
		set["resubmissionInfo.isResubmission"] = true
		set["resubmissionInfo.resubmittedAt"] = rs.At
		set["resubmissionInfo.resubmissionReason"] = rs.Reason
		update["$inc"] = bson.M{"resubmissionInfo.resubmissionCount": 1}
	}
	update["$set"] = set
	return filter, update
}

func (r *MongoApplicationRepo) Transition(ctx context.Context, applicationID string, guard Guard, change Change) (*model.Application, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	filter, update := transitionQuery(applicationID, guard, change)

	var app model.Application
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&app)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := r.coll.CountDocuments(ctx, bson.M{"applicationId": applicationID})
		if cerr != nil {
			return nil, errors.Wrap(cerr, "checking application")
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrGuardMismatch
	}
	if err != nil {
		return nil, errors.Wrapf(err, "updating application %s", applicationID)
	}
	return &app, nil
}
