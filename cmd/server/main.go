// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/wxpilot/broadcast-backend/internal/channel"
	"github.com/wxpilot/broadcast-backend/internal/db"
	"github.com/wxpilot/broadcast-backend/internal/handler"
	"github.com/wxpilot/broadcast-backend/internal/model"
	"github.com/wxpilot/broadcast-backend/internal/repository"
	"github.com/wxpilot/broadcast-backend/internal/service"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	// Init DB
	db.Init()

	contactRepo := &repository.ContactRepository{DB: db.DB}
	groupRepo := &repository.GroupRepository{DB: db.DB}
	jobRepo := &repository.BroadcastJobRepository{DB: db.DB}
	historyRepo := &repository.DeliveryHistoryRepository{DB: db.DB}

	ch, closeCh := openChannel()
	defer closeCh()

	rosterService := &service.RosterService{ContactRepo: contactRepo}
	groupService := &service.GroupService{GroupRepo: groupRepo, ContactRepo: contactRepo}
	dispatchService := service.NewDispatchService(groupRepo, contactRepo, historyRepo, ch, ratePerSec())
	syncService := service.NewSyncService(contactRepo, ch)
	schedulerService := &service.SchedulerService{
		JobRepo:    jobRepo,
		GroupRepo:  groupRepo,
		Dispatcher: dispatchService,
	}

	// Roster snapshots published by the bridge land in the roster store,
	// which is what the synchronizer's count polling watches.
	if consumer, ok := ch.(snapshotConsumer); ok {
		if err := consumer.ConsumeRosterSnapshots(rosterService.ApplySnapshot); err != nil {
			log.Fatal("failed to consume roster snapshots:", err)
		}
	}

	// Jobs stuck in running from before a restart will never finish.
	schedulerService.RecoverStale()

	// Trigger loop
	c := cron.New()
	if _, err := c.AddFunc("@every 3s", func() {
		schedulerService.Tick(context.Background())
	}); err != nil {
		log.Fatal("failed to start trigger loop:", err)
	}
	c.Start()
	defer c.Stop()

	contactHandler := &handler.ContactHandler{
		Roster: rosterService,
		Groups: groupService,
		Sync:   syncService,
	}
	groupHandler := &handler.GroupHandler{Groups: groupService}
	broadcastHandler := &handler.BroadcastHandler{
		Dispatcher:  dispatchService,
		Scheduler:   schedulerService,
		HistoryRepo: historyRepo,
	}

	r := chi.NewRouter()

	// Roster routes
	r.Get("/contacts", contactHandler.ListContacts)
	r.Post("/contacts/sync", contactHandler.SyncContacts)
	r.Put("/contacts/{id}/group", contactHandler.AssignGroup)
	r.Put("/contacts/{id}/remark", contactHandler.UpdateRemark)

	// Group routes
	r.Get("/groups", groupHandler.ListGroups)
	r.Post("/groups", groupHandler.CreateGroup)
	r.Put("/groups/{id}", groupHandler.RenameGroup)
	r.Delete("/groups/{id}", groupHandler.DeleteGroup)

	// Broadcast routes
	r.Post("/messages/send", broadcastHandler.SendMessage)
	r.Get("/messages/history", broadcastHandler.ListHistory)
	r.Post("/jobs", broadcastHandler.ScheduleJob)
	r.Get("/jobs", broadcastHandler.ListJobs)
	r.Delete("/jobs/{id}", broadcastHandler.CancelJob)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Println("🚀 Server running on", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

// openChannel picks the channel implementation: AMQP when AMQP_URL is set
// (unless CHANNEL=memory forces the loopback for local development).
func openChannel() (channel.Channel, func()) {
	url := os.Getenv("AMQP_URL")
	if os.Getenv("CHANNEL") == "memory" || url == "" {
		log.Println("⚠️ Using in-memory channel, sends are logged only")
		return channel.NewMemoryChannel(), func() {}
	}
	ch, err := channel.DialAMQP(url)
	if err != nil {
		log.Fatal("failed to connect to channel broker:", err)
	}
	log.Println("✅ Connected to channel broker")
	return ch, func() { ch.Close() }
}

type snapshotConsumer interface {
	ConsumeRosterSnapshots(apply func(snapshot []model.ContactSnapshot) error) error
}

func ratePerSec() int {
	if v := os.Getenv("SEND_RATE_PER_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 5
}
