package notifications

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/commitly/commitly/db"
	"github.com/commitly/commitly/models"
)

// PermissionStatus mirrors the device permission states we act on.
type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)

// Channel describes an Android notification channel.
type Channel struct {
	ID         string
	Name       string
	Importance string
	Vibration  []int
	LightColor string
}

// The three channels every device is set up with on registration.
var defaultChannels = []Channel{
	{ID: "default", Name: "Default", Importance: "max", Vibration: []int{0, 250, 250, 250}, LightColor: "#FF231F7C"},
	{ID: "goals", Name: "Daily Goals", Importance: "high", Vibration: []int{0, 250, 250, 250}, LightColor: "#FF231F7C"},
	{ID: "achievements", Name: "Achievements", Importance: "high", Vibration: []int{0, 250, 250, 250}, LightColor: "#FFD700FF"},
}

// Platform abstracts the device surface: permission prompts, the push token
// and channel setup. Production wires the Expo-backed implementation; tests
// use fakes.
type Platform interface {
	IsPhysicalDevice() bool
	Permissions(ctx context.Context) (PermissionStatus, error)
	RequestPermissions(ctx context.Context) (PermissionStatus, error)
	PushToken(ctx context.Context) (string, error)
	SetupChannel(ctx context.Context, ch Channel) error
}

// Content is what a notification shows and carries.
type Content struct {
	UserID    string            // inbox owner; empty skips persistence
	Title     string
	Body      string
	Data      map[string]string
	Sound     string
	Priority  string
	ChannelID string
	Type      string
}

// Trigger controls when a scheduled notification fires. A zero Trigger fires
// immediately. Daily triggers re-arm themselves after delivery.
type Trigger struct {
	At     time.Time
	Daily  bool
	Hour   int
	Minute int
}

type scheduled struct {
	content Content
	trigger Trigger
	timer   *time.Timer
}

// Service schedules local notifications, sends remote pushes through Expo
// and persists everything delivered into the per-user inbox.
type Service struct {
	db       *db.DB
	platform Platform
	push     *ExpoPushClient
	welcome  *WelcomeClient
	logger   *log.Logger

	mu        sync.Mutex
	pending   map[string]*scheduled
	received  map[int]func(Content)
	responded map[int]func(Content)
	nextSub   int

	welcomeJobs chan welcomeJob
}

type welcomeJob struct {
	userID    string
	username  string
	pushToken string
}

func NewService(database *db.DB, platform Platform, push *ExpoPushClient, welcome *WelcomeClient) *Service {
	return &Service{
		db:          database,
		platform:    platform,
		push:        push,
		welcome:     welcome,
		logger:      log.New(os.Stdout, "notifications: ", log.LstdFlags|log.Lmsgprefix),
		pending:     make(map[string]*scheduled),
		received:    make(map[int]func(Content)),
		responded:   make(map[int]func(Content)),
		welcomeJobs: make(chan welcomeJob, 64),
	}
}

// RegisterForPushNotifications walks the permission flow and returns the
// device push token. Simulators and denied permissions yield an empty token
// without an error; only token retrieval itself can fail.
func (s *Service) RegisterForPushNotifications(ctx context.Context) (string, error) {
	if !s.platform.IsPhysicalDevice() {
		s.logger.Println("Push notifications require a physical device")
		return "", nil
	}

	status, err := s.platform.Permissions(ctx)
	if err != nil {
		return "", err
	}
	if status != PermissionGranted {
		status, err = s.platform.RequestPermissions(ctx)
		if err != nil {
			return "", err
		}
	}
	if status != PermissionGranted {
		s.logger.Println("Push notification permission not granted")
		return "", nil
	}

	token, err := s.platform.PushToken(ctx)
	if err != nil {
		return "", err
	}

	for _, ch := range defaultChannels {
		if err := s.platform.SetupChannel(ctx, ch); err != nil {
			s.logger.Printf("Error setting up channel %s: %v", ch.ID, err)
		}
	}

	return token, nil
}

// AddNotificationListeners registers delivery and tap callbacks. The
// returned teardown removes both.
func (s *Service) AddNotificationListeners(onReceived, onResponse func(Content)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	if onReceived != nil {
		s.received[id] = onReceived
	}
	if onResponse != nil {
		s.responded[id] = onResponse
	}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.received, id)
		delete(s.responded, id)
		s.mu.Unlock()
	}
}

// HandleNotificationResponse feeds a user tap back into the response
// listeners.
func (s *Service) HandleNotificationResponse(content Content) {
	s.mu.Lock()
	callbacks := make([]func(Content), 0, len(s.responded))
	for _, cb := range s.responded {
		callbacks = append(callbacks, cb)
	}
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(content)
	}
}

// ScheduleLocalNotification arms a notification and returns its identifier.
// A zero trigger delivers immediately, an At trigger once at that instant,
// a Daily trigger every day at hour:minute.
func (s *Service) ScheduleLocalNotification(content Content, trigger Trigger) string {
	id := xid.New().String()

	if trigger.At.IsZero() && !trigger.Daily {
		s.deliver(content)
		return id
	}

	s.arm(id, content, trigger)
	return id
}

func (s *Service) arm(id string, content Content, trigger Trigger) {
	delay := time.Until(trigger.At)
	if trigger.Daily {
		delay = untilNextDaily(time.Now(), trigger.Hour, trigger.Minute)
	}
	if delay < 0 {
		delay = 0
	}

	entry := &scheduled{content: content, trigger: trigger}
	entry.timer = time.AfterFunc(delay, func() {
		s.deliver(content)

		s.mu.Lock()
		_, alive := s.pending[id]
		s.mu.Unlock()
		if alive && trigger.Daily {
			s.arm(id, content, trigger)
			return
		}

		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.pending[id] = entry
	s.mu.Unlock()
}

func untilNextDaily(now time.Time, hour, minute int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// CancelScheduledNotification stops a pending notification. Unknown
// identifiers are a no-op.
func (s *Service) CancelScheduledNotification(id string) {
	s.mu.Lock()
	entry, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if ok {
		entry.timer.Stop()
	}
}

// CancelAllScheduledNotifications stops everything pending.
func (s *Service) CancelAllScheduledNotifications() {
	s.mu.Lock()
	entries := s.pending
	s.pending = make(map[string]*scheduled)
	s.mu.Unlock()

	for _, entry := range entries {
		entry.timer.Stop()
	}
}

// deliver fans a notification out to listeners and the persistent inbox.
func (s *Service) deliver(content Content) {
	s.mu.Lock()
	callbacks := make([]func(Content), 0, len(s.received))
	for _, cb := range s.received {
		callbacks = append(callbacks, cb)
	}
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(content)
	}

	if content.UserID == "" || s.db == nil {
		return
	}
	err := s.db.CreateNotification(context.Background(), &models.Notification{
		UserID:  content.UserID,
		Title:   content.Title,
		Message: content.Body,
		Type:    content.Type,
		Data:    content.Data,
	})
	if err != nil {
		s.logger.Printf("Error persisting notification for user %s: %v", content.UserID, err)
	}
}

// achievementTemplates maps achievement kinds to their notification copy.
// Unknown kinds fall back to a generic congratulation.
func achievementContent(achievement string, data map[string]string) (string, string) {
	switch achievement {
	case "goal-reached":
		return "Daily Goal Reached! 🎯", "You hit your daily commit goal. Keep the momentum going!"
	case "streak-milestone":
		days := data["days"]
		return "Streak Milestone! 🔥", days + " days of commits in a row. Incredible consistency!"
	case "points-milestone":
		points := data["points"]
		return "Points Milestone! ⭐", "You crossed " + points + " points. Your commits are paying off!"
	default:
		return "Achievement Unlocked! 🏆", "You earned a new achievement. Check it out!"
	}
}

// SendAchievementNotification pushes a high-priority achievement to the
// user's device and records it in the inbox. Missing tokens degrade to
// inbox-only delivery.
func (s *Service) SendAchievementNotification(ctx context.Context, userID, achievement string, data map[string]string) {
	title, body := achievementContent(achievement, data)

	if data == nil {
		data = map[string]string{}
	}
	data["achievement"] = achievement

	content := Content{
		UserID:    userID,
		Title:     title,
		Body:      body,
		Data:      data,
		Sound:     "default",
		Priority:  "high",
		ChannelID: "achievements",
		Type:      "achievement",
	}
	s.deliver(content)

	if s.push == nil {
		return
	}
	p, err := s.db.GetProfileByUserID(userID)
	if err != nil || p == nil || p.PushToken == nil || *p.PushToken == "" {
		return
	}
	if err := s.push.Send(ctx, *p.PushToken, content); err != nil {
		s.logger.Printf("Error sending achievement push to user %s: %v", userID, err)
	}
}

// ScheduleDailyGoalReminder arms the evening nudge on the goals channel and
// returns the schedule identifier for later cancellation.
func (s *Service) ScheduleDailyGoalReminder(userID string, hour, minute int) string {
	return s.ScheduleLocalNotification(Content{
		UserID:    userID,
		Title:     "Don't lose your streak! 🔥",
		Body:      "There's still time to commit today and hit your goal.",
		Sound:     "default",
		Priority:  "high",
		ChannelID: "goals",
		Type:      "reminder",
	}, Trigger{Daily: true, Hour: hour, Minute: minute})
}

// DispatchWelcome queues the one-time onboarding notification. It never
// blocks; a full queue drops the job with a log line.
func (s *Service) DispatchWelcome(userID, username, pushToken string) {
	job := welcomeJob{userID: userID, username: username, pushToken: pushToken}
	select {
	case s.welcomeJobs <- job:
	default:
		s.logger.Printf("Welcome queue full, dropping job for user %s", userID)
	}
}

// StartWelcomeWorker drains the welcome queue until the context is
// cancelled. Run it in its own goroutine.
func (s *Service) StartWelcomeWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.welcomeJobs:
			if s.welcome == nil {
				continue
			}
			if err := s.welcome.SendWelcome(ctx, job.userID, job.username, job.pushToken); err != nil {
				s.logger.Printf("Error sending welcome for user %s: %v", job.userID, err)
			}
		}
	}
}
