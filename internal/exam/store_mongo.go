package exam

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps each entity in its own collection, mirroring the document
// layout the service was first built on.
type MongoStore struct {
	exams     *mongo.Collection
	questions *mongo.Collection
	attempts  *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		exams:     db.Collection("exams"),
		questions: db.Collection("questions"),
		attempts:  db.Collection("attempts"),
	}
}

// EnsureIndexes creates the lookup indexes and the unique (exam, student)
// index that backs the one-attempt rule.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.exams.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "institute_id", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return errors.Wrap(err, "exams index")
	}
	if _, err := s.questions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "exam_id", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		return errors.Wrap(err, "questions index")
	}
	if _, err := s.attempts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "exam_id", Value: 1}, {Key: "student_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_exam_student"),
		},
		{
			Keys: bson.D{{Key: "institute_id", Value: 1}, {Key: "submitted_at", Value: -1}},
		},
	}); err != nil {
		return errors.Wrap(err, "attempts indexes")
	}
	return nil
}

func (s *MongoStore) InsertExam(ctx context.Context, e Exam) error {
	if e.InstituteID == "" {
		return ErrMissingTenant
	}
	_, err := s.exams.InsertOne(ctx, e)
	return errors.Wrap(err, "insert exam")
}

func (s *MongoStore) GetExam(ctx context.Context, instituteID, id string) (Exam, error) {
	if instituteID == "" {
		return Exam{}, ErrMissingTenant
	}
	var e Exam
	err := s.exams.FindOne(ctx, bson.M{"_id": id, "institute_id": instituteID}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Exam{}, ErrNotFound
	}
	if err != nil {
		return Exam{}, errors.Wrap(err, "get exam")
	}
	return e, nil
}

func (s *MongoStore) FindExams(ctx context.Context, f ExamFilter) ([]Exam, error) {
	if f.InstituteID == "" {
		return nil, ErrMissingTenant
	}
	filter := bson.M{"institute_id": f.InstituteID}
	if f.PublishedOnly {
		filter["published"] = true
	}
	if f.BatchID != "" {
		filter["$or"] = bson.A{bson.M{"batch_id": nil}, bson.M{"batch_id": f.BatchID}}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.exams.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find exams")
	}
	out := []Exam{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode exams")
	}
	return out, nil
}

func (s *MongoStore) UpdateExam(ctx context.Context, e Exam) error {
	if e.InstituteID == "" {
		return ErrMissingTenant
	}
	res, err := s.exams.ReplaceOne(ctx, bson.M{"_id": e.ID, "institute_id": e.InstituteID}, e)
	if err != nil {
		return errors.Wrap(err, "update exam")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteExam(ctx context.Context, instituteID, id string) error {
	if instituteID == "" {
		return ErrMissingTenant
	}
	res, err := s.exams.DeleteOne(ctx, bson.M{"_id": id, "institute_id": instituteID})
	if err != nil {
		return errors.Wrap(err, "delete exam")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) InsertQuestion(ctx context.Context, q Question) error {
	_, err := s.questions.InsertOne(ctx, q)
	return errors.Wrap(err, "insert question")
}

func (s *MongoStore) GetQuestion(ctx context.Context, examID, id string) (Question, error) {
	var q Question
	err := s.questions.FindOne(ctx, bson.M{"_id": id, "exam_id": examID}).Decode(&q)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Question{}, ErrNotFound
	}
	if err != nil {
		return Question{}, errors.Wrap(err, "get question")
	}
	return q, nil
}

func (s *MongoStore) FindQuestions(ctx context.Context, examID string) ([]Question, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.questions.Find(ctx, bson.M{"exam_id": examID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find questions")
	}
	out := []Question{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode questions")
	}
	return out, nil
}

func (s *MongoStore) UpdateQuestion(ctx context.Context, q Question) error {
	res, err := s.questions.ReplaceOne(ctx, bson.M{"_id": q.ID, "exam_id": q.ExamID}, q)
	if err != nil {
		return errors.Wrap(err, "update question")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteQuestion(ctx context.Context, examID, id string) error {
	res, err := s.questions.DeleteOne(ctx, bson.M{"_id": id, "exam_id": examID})
	if err != nil {
		return errors.Wrap(err, "delete question")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteQuestions(ctx context.Context, examID string) (int64, error) {
	res, err := s.questions.DeleteMany(ctx, bson.M{"exam_id": examID})
	if err != nil {
		return 0, errors.Wrap(err, "delete questions")
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) InsertAttempt(ctx context.Context, a Attempt) error {
	if a.InstituteID == "" {
		return ErrMissingTenant
	}
	if a.Answers == nil {
		a.Answers = []Answer{}
	}
	_, err := s.attempts.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	return errors.Wrap(err, "insert attempt")
}

func (s *MongoStore) FindAttempt(ctx context.Context, instituteID, examID, studentID string) (Attempt, error) {
	if instituteID == "" {
		return Attempt{}, ErrMissingTenant
	}
	var a Attempt
	err := s.attempts.FindOne(ctx, bson.M{
		"institute_id": instituteID,
		"exam_id":      examID,
		"student_id":   studentID,
	}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, errors.Wrap(err, "find attempt")
	}
	return a, nil
}

func (s *MongoStore) FindAttempts(ctx context.Context, f AttemptFilter) ([]Attempt, error) {
	filter, err := attemptDoc(f)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.attempts.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find attempts")
	}
	out := []Attempt{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode attempts")
	}
	return out, nil
}

func (s *MongoStore) DeleteAttempts(ctx context.Context, f AttemptFilter) (int64, error) {
	filter, err := attemptDoc(f)
	if err != nil {
		return 0, err
	}
	res, err := s.attempts.DeleteMany(ctx, filter)
	if err != nil {
		return 0, errors.Wrap(err, "delete attempts")
	}
	return res.DeletedCount, nil
}

func attemptDoc(f AttemptFilter) (bson.M, error) {
	if f.InstituteID == "" {
		return nil, ErrMissingTenant
	}
	m := bson.M{"institute_id": f.InstituteID}
	if f.ExamID != "" {
		m["exam_id"] = f.ExamID
	}
	if f.StudentID != "" {
		m["student_id"] = f.StudentID
	}
	return m, nil
}
