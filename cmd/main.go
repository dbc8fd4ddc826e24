package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/commitly/commitly/config"
	"github.com/commitly/commitly/db"
	"github.com/commitly/commitly/feed"
	"github.com/commitly/commitly/oauth"
	"github.com/commitly/commitly/service/accounts"
	"github.com/commitly/commitly/service/commits"
	"github.com/commitly/commitly/service/github"
	"github.com/commitly/commitly/service/notifications"
	"github.com/commitly/commitly/service/profile"
	"github.com/commitly/commitly/session"
)

type application struct {
	database       *db.DB
	bus            feed.Bus
	sessionManager *session.Manager
	authStore      *session.Store
	oauthManager   *oauth.Manager
	githubService  *github.Service
	profileService *profile.Service
	commitService  *commits.Service
	notifications  *notifications.Service
	accountService *accounts.Service
}

func main() {
	config.Load()

	// create data folder if not exists with proper perms
	os.MkdirAll("./data", 0755)

	database, err := db.New(viper.GetString("db.path"))
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}

	if err := database.Initialize(); err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}

	var bus feed.Bus
	if addr := viper.GetString("redis.addr"); addr != "" {
		redisBus, err := feed.NewRedisBus(addr, viper.GetString("redis.password"), viper.GetInt("redis.db"))
		if err != nil {
			log.Fatalf("Error connecting to redis: %v", err)
		}
		bus = redisBus
	} else {
		bus = feed.NewMemoryBus()
	}
	database.WithFeed(bus)

	sessionManager := session.NewManager(database)

	authStore := session.NewStore(viper.GetString("session.storage_path"), sessionManager)
	authStore.Hydrate()

	githubService := github.NewService(
		viper.GetString("github.api_url"),
		viper.GetString("github.graphql_url"),
		viper.GetString("streak.api_url"),
		viper.GetString("github.token"),
	)

	var welcomeClient *notifications.WelcomeClient
	welcomeURL := viper.GetString("welcome.function_url")
	welcomeKey := viper.GetString("welcome.signing_key")
	welcomeKeyID := viper.GetString("welcome.signing_key_id")
	if welcomeURL != "" && welcomeKey != "" && welcomeKeyID != "" {
		welcomeClient, err = notifications.NewWelcomeClient(
			welcomeURL, viper.GetString("welcome.project_id"), []byte(welcomeKey), welcomeKeyID)
		if err != nil {
			log.Fatalf("Error creating welcome client: %v", err)
		}
	} else {
		log.Println("Welcome function not configured, onboarding notifications disabled")
	}

	pushClient := notifications.NewExpoPushClient(viper.GetString("push.api_url"))
	notificationService := notifications.NewService(database, notifications.NoDevicePlatform{}, pushClient, welcomeClient)

	profileService := profile.NewService(database, notificationService)
	commitService := commits.NewService(database, githubService, profileService, notificationService,
		viper.GetInt("points.per_commit"))
	accountService := accounts.NewService(githubService, profileService, database)

	oauthManager := oauth.NewManager(sessionManager, authStore)
	githubOAuth := oauth.NewOAuth2Service(
		viper.GetString("github.client_id"),
		viper.GetString("github.client_secret"),
		viper.GetString("callback.github"),
		strings.Split(viper.GetString("github.scopes"), ","),
		"github",
		accountService,
	)
	oauthManager.RegisterService("github", githubOAuth)

	app := &application{
		database:       database,
		bus:            bus,
		sessionManager: sessionManager,
		authStore:      authStore,
		oauthManager:   oauthManager,
		githubService:  githubService,
		profileService: profileService,
		commitService:  commitService,
		notifications:  notificationService,
		accountService: accountService,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go notificationService.StartWelcomeWorker(ctx)

	trackerInterval := time.Duration(viper.GetInt("tracker.interval")) * time.Second
	go commitService.StartCommitTracker(ctx, trackerInterval)

	serverAddr := fmt.Sprintf("%s:%s", viper.GetString("server.host"), viper.GetString("server.port"))
	fmt.Printf("Server running at: http://%s\n", serverAddr)
	log.Fatal(http.ListenAndServe(serverAddr, app.routes()))
}
