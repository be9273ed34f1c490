package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/course-enrollment/config"
	"github.com/sahilchouksey/course-enrollment/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const coursesCollection = "courses"

type memberDocument struct {
	Email          string    `bson:"email"`
	EnrollmentDate time.Time `bson:"enrollment_date"`
}

type courseDocument struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	Code               string             `bson:"code"`
	Name               string             `bson:"name"`
	Description        string             `bson:"description"`
	StartDate          time.Time          `bson:"start_date"`
	EndDate            time.Time          `bson:"end_date"`
	ParticipantsLimit  int64              `bson:"participants_limit"`
	ParticipantsNumber int64              `bson:"participants_number"`
	Status             string             `bson:"status"`
	ClosedReason       string             `bson:"closed_reason,omitempty"`
	Members            []memberDocument   `bson:"members"`
	Version            int64              `bson:"version"`
	CreatedAt          time.Time          `bson:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at"`
}

func toCourseDocument(c *model.Course) courseDocument {
	members := make([]memberDocument, 0, len(c.Members))
	for _, m := range c.Members {
		members = append(members, memberDocument{Email: m.Email, EnrollmentDate: m.EnrollmentDate})
	}
	return courseDocument{
		Code:               c.Code,
		Name:               c.Name,
		Description:        c.Description,
		StartDate:          c.StartDate,
		EndDate:            c.EndDate,
		ParticipantsLimit:  c.ParticipantsLimit,
		ParticipantsNumber: c.ParticipantsNumber,
		Status:             string(c.Status),
		ClosedReason:       string(c.ClosedReason),
		Members:            members,
		Version:            c.Version,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

// toModel converts the document. Members get positional IDs so that stored
// members are told apart from ones appended in memory.
func (d courseDocument) toModel() model.Course {
	members := make([]model.CourseMember, 0, len(d.Members))
	for i, m := range d.Members {
		members = append(members, model.CourseMember{
			ID:             uint(i + 1),
			Email:          m.Email,
			EnrollmentDate: m.EnrollmentDate.UTC(),
		})
	}
	return model.Course{
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
		Code:               d.Code,
		Name:               d.Name,
		Description:        d.Description,
		StartDate:          d.StartDate.UTC(),
		EndDate:            d.EndDate.UTC(),
		ParticipantsLimit:  d.ParticipantsLimit,
		ParticipantsNumber: d.ParticipantsNumber,
		Status:             model.CourseStatus(d.Status),
		ClosedReason:       model.CloseReason(d.ClosedReason),
		Members:            members,
		Version:            d.Version,
	}
}

// MongoStore keeps each course, members included, in a single document
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// StartMongo connects to MongoDB and verifies the connection
func StartMongo(ctx context.Context, env *config.EnviornmentVariable) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(env.MONGO_URI))
	if err != nil {
		log.Errorf("Unable to connect to MongoDB: %v", err)
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		log.Errorf("MongoDB ping failed: %v", err)
		return nil, err
	}

	log.Infof("Successfully connected to MongoDB database %s.", env.MONGO_DATABASE)

	return &MongoStore{
		client:     client,
		collection: client.Database(env.MONGO_DATABASE).Collection(coursesCollection),
	}, nil
}

// Init creates the unique index on course code
func (s *MongoStore) Init(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create course code index: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	log.Info("Closing MongoDB connection...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) GetCourse(ctx context.Context, code string) (*model.Course, error) {
	var doc courseDocument
	err := s.collection.FindOne(ctx, bson.M{"code": code}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to fetch course: %w", err)
	}
	course := doc.toModel()
	return &course, nil
}

func (s *MongoStore) ListCourses(ctx context.Context) ([]model.Course, error) {
	return s.find(ctx, bson.M{})
}

func (s *MongoStore) ListCoursesByStatus(ctx context.Context, statuses ...model.CourseStatus) ([]model.Course, error) {
	values := make([]string, 0, len(statuses))
	for _, st := range statuses {
		values = append(values, string(st))
	}
	return s.find(ctx, bson.M{"status": bson.M{"$in": values}})
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]model.Course, error) {
	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch courses: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []courseDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode courses: %w", err)
	}

	courses := make([]model.Course, 0, len(docs))
	for _, d := range docs {
		courses = append(courses, d.toModel())
	}
	return courses, nil
}

func (s *MongoStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{"code": code}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check course code: %w", err)
	}
	return count > 0, nil
}

func (s *MongoStore) CreateCourse(ctx context.Context, course *model.Course) error {
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	course.Version = 0

	if _, err := s.collection.InsertOne(ctx, toCourseDocument(course)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrCourseCodeAlreadyExists.Wrap(err)
		}
		return fmt.Errorf("failed to create course: %w", err)
	}
	return nil
}

// UpdateCourse replaces the document only while its version still equals
// expectedVersion
func (s *MongoStore) UpdateCourse(ctx context.Context, code string, course *model.Course, expectedVersion int64) error {
	course.UpdatedAt = time.Now().UTC()
	doc := toCourseDocument(course)
	doc.Version = expectedVersion + 1

	update := bson.M{
		"$set": bson.M{
			"code":                doc.Code,
			"name":                doc.Name,
			"description":         doc.Description,
			"start_date":          doc.StartDate,
			"end_date":            doc.EndDate,
			"participants_limit":  doc.ParticipantsLimit,
			"participants_number": doc.ParticipantsNumber,
			"status":              doc.Status,
			"closed_reason":       doc.ClosedReason,
			"members":             doc.Members,
			"version":             doc.Version,
			"updated_at":          doc.UpdatedAt,
		},
	}

	result, err := s.collection.UpdateOne(ctx, bson.M{"code": code, "version": expectedVersion}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrCourseCodeAlreadyExists.Wrap(err)
		}
		return fmt.Errorf("failed to update course: %w", err)
	}
	if result.MatchedCount == 0 {
		exists, err := s.ExistsByCode(ctx, code)
		if err != nil {
			return err
		}
		if !exists {
			return model.ErrCourseNotFound
		}
		return ErrVersionConflict
	}

	for i := range course.Members {
		course.Members[i].ID = uint(i + 1)
	}
	course.Version = doc.Version
	return nil
}
