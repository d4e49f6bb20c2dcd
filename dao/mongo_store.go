package dao

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zlyuancn/engage/conf"
	"github.com/zlyuancn/engage/model"
)

// 文档存储
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) subscriptions(level model.SubscriptionLevel) *mongo.Collection {
	if level == model.Level2 {
		return s.db.Collection(conf.Conf.Level2SubscriptionCollection)
	}
	return s.db.Collection(conf.Conf.Level1SubscriptionCollection)
}

func (s *MongoStore) missions() *mongo.Collection {
	return s.db.Collection(conf.Conf.MissionCollection)
}

func (s *MongoStore) participations() *mongo.Collection {
	return s.db.Collection(conf.Conf.ParticipationCollection)
}

func (s *MongoStore) users() *mongo.Collection {
	return s.db.Collection(conf.Conf.UserCollection)
}

func mapErr(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return model.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return model.ErrAlreadyExists
	}
	return errors.Wrap(err, op)
}

// ---- 订阅 ----

func (s *MongoStore) GetSubscription(ctx context.Context, level model.SubscriptionLevel, ownerID string) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := s.subscriptions(level).FindOne(ctx, bson.M{"_id": ownerID}).Decode(sub)
	if err != nil {
		return nil, mapErr(err, "find subscription")
	}
	sub.Level = level
	return sub, nil
}

func (s *MongoStore) InsertSubscription(ctx context.Context, sub *model.Subscription) error {
	_, err := s.subscriptions(sub.Level).InsertOne(ctx, sub)
	return mapErr(err, "insert subscription")
}

// 增加用量并返回增加后的值
func (s *MongoStore) IncrUsage(ctx context.Context, level model.SubscriptionLevel, ownerID string, kind model.UsageKind, delta int64, now time.Time) (int64, error) {
	update := bson.M{
		"$inc": bson.M{kind.Field(): delta},
		"$set": bson.M{"updatedAt": now},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	sub := &model.Subscription{}
	err := s.subscriptions(level).FindOneAndUpdate(ctx, bson.M{"_id": ownerID}, update, opts).Decode(sub)
	if err != nil {
		return 0, mapErr(err, "incr usage")
	}
	return sub.Usage.Get(kind), nil
}

func (s *MongoStore) updateSubscription(ctx context.Context, level model.SubscriptionLevel, ownerID string, set bson.M) error {
	ret, err := s.subscriptions(level).UpdateOne(ctx, bson.M{"_id": ownerID}, bson.M{"$set": set})
	if err != nil {
		return mapErr(err, "update subscription")
	}
	if ret.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *MongoStore) SetTier(ctx context.Context, level model.SubscriptionLevel, ownerID string, tier model.Tier, now time.Time) error {
	return s.updateSubscription(ctx, level, ownerID, bson.M{"tier": tier, "updatedAt": now})
}

func (s *MongoStore) SetStatus(ctx context.Context, level model.SubscriptionLevel, ownerID string, status model.SubscriptionStatus, now time.Time) error {
	return s.updateSubscription(ctx, level, ownerID, bson.M{"status": status, "updatedAt": now})
}

// 清零某个窗口的用量
func (s *MongoStore) ResetUsage(ctx context.Context, level model.SubscriptionLevel, ownerID string, w model.Window, now time.Time) error {
	set := bson.M{"updatedAt": now}
	if w == model.Window_Quarter {
		set[model.UsageKind_FreeEvent.Field()] = 0
		set["lastQuarterlyReset"] = now
	} else {
		set[model.UsageKind_SquadMeetup.Field()] = 0
		set[model.UsageKind_Event.Field()] = 0
		set[model.UsageKind_Mission.Field()] = 0
		set["lastMonthlyReset"] = now
	}
	return s.updateSubscription(ctx, level, ownerID, set)
}

// 列出上次重置早于before的订阅
func (s *MongoStore) ListResetDue(ctx context.Context, level model.SubscriptionLevel, w model.Window, before time.Time) ([]string, error) {
	field := "lastMonthlyReset"
	if w == model.Window_Quarter {
		field = "lastQuarterlyReset"
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := s.subscriptions(level).Find(ctx, bson.M{field: bson.M{"$lt": before}}, opts)
	if err != nil {
		return nil, mapErr(err, "find reset due")
	}

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err = cur.All(ctx, &rows); err != nil {
		return nil, mapErr(err, "decode reset due")
	}
	ret := make([]string, 0, len(rows))
	for _, r := range rows {
		ret = append(ret, r.ID)
	}
	return ret, nil
}

// ---- 任务 ----

func (s *MongoStore) InsertMission(ctx context.Context, m *model.Mission) error {
	_, err := s.missions().InsertOne(ctx, m)
	return mapErr(err, "insert mission")
}

func (s *MongoStore) GetMission(ctx context.Context, id string) (*model.Mission, error) {
	m := &model.Mission{}
	err := s.missions().FindOne(ctx, bson.M{"_id": id}).Decode(m)
	if err != nil {
		return nil, mapErr(err, "find mission")
	}
	return m, nil
}

// 列出进行中且未过期的任务
func (s *MongoStore) ListActiveMissions(ctx context.Context, now time.Time) ([]*model.Mission, error) {
	filter := bson.M{
		"status": model.MissionStatus_Active,
		"$or": bson.A{
			bson.M{"validUntil": bson.M{"$exists": false}},
			bson.M{"validUntil": bson.M{"$gt": now}},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "priorityScore", Value: -1}})
	cur, err := s.missions().Find(ctx, filter, opts)
	if err != nil {
		return nil, mapErr(err, "find active missions")
	}

	var ret []*model.Mission
	if err = cur.All(ctx, &ret); err != nil {
		return nil, mapErr(err, "decode missions")
	}
	return ret, nil
}

// 占用一个名额, 名额已满或任务不在进行中时返回false
func (s *MongoStore) IncrParticipants(ctx context.Context, missionID string) (bool, error) {
	filter := bson.M{
		"_id":    missionID,
		"status": model.MissionStatus_Active,
		"$or": bson.A{
			bson.M{"maxParticipants": bson.M{"$lte": 0}},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$currentParticipants", "$maxParticipants"}}},
		},
	}
	ret, err := s.missions().UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"currentParticipants": 1}})
	if err != nil {
		return false, mapErr(err, "incr participants")
	}
	return ret.ModifiedCount == 1, nil
}

// 归还一个名额
func (s *MongoStore) DecrParticipants(ctx context.Context, missionID string) error {
	filter := bson.M{"_id": missionID, "currentParticipants": bson.M{"$gt": 0}}
	_, err := s.missions().UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"currentParticipants": -1}})
	if err != nil {
		return mapErr(err, "decr participants")
	}
	return nil
}

func (s *MongoStore) SetMissionStatus(ctx context.Context, missionID string, status model.MissionStatus) error {
	ret, err := s.missions().UpdateOne(ctx, bson.M{"_id": missionID}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return mapErr(err, "update mission status")
	}
	if ret.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ---- 用户 ----

func (s *MongoStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := s.users().FindOne(ctx, bson.M{"_id": id}).Decode(u)
	if err != nil {
		return nil, mapErr(err, "find user")
	}
	return u, nil
}

// ---- 参与记录 ----

func (s *MongoStore) InsertParticipation(ctx context.Context, p *model.Participation) error {
	_, err := s.participations().InsertOne(ctx, p)
	return mapErr(err, "insert participation")
}

func (s *MongoStore) GetParticipation(ctx context.Context, id string) (*model.Participation, error) {
	p := &model.Participation{}
	err := s.participations().FindOne(ctx, bson.M{"_id": id}).Decode(p)
	if err != nil {
		return nil, mapErr(err, "find participation")
	}
	return p, nil
}

func (s *MongoStore) ListUserParticipations(ctx context.Context, userID string) ([]*model.Participation, error) {
	cur, err := s.participations().Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, mapErr(err, "find participations")
	}
	var ret []*model.Participation
	if err = cur.All(ctx, &ret); err != nil {
		return nil, mapErr(err, "decode participations")
	}
	return ret, nil
}

// 仅当状态为from时更新, 返回是否更新成功
func (s *MongoStore) UpdateParticipationStatus(ctx context.Context, id string, from, to model.ParticipationStatus,
	reviewerID, note string, now time.Time) (bool, error) {
	update := bson.M{"$set": bson.M{
		"status":     to,
		"reviewerId": reviewerID,
		"note":       note,
		"reviewedAt": now,
	}}
	ret, err := s.participations().UpdateOne(ctx, bson.M{"_id": id, "status": from}, update)
	if err != nil {
		return false, mapErr(err, "update participation")
	}
	return ret.ModifiedCount == 1, nil
}
