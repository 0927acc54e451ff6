package main

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/config"
	"github.com/huddleapp/huddle/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	cfg := config.Load()

	// Force DB logging off to avoid noise
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to Database")

	// Common password for all demo users (the identity service owns real
	// credentials; this seed just mirrors the directory)
	password := "password123"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("❌ Failed to hash password: %v", err)
	}

	log.Println("🌱 Seeding 10 users...")

	for i := 1; i <= 10; i++ {
		username := fmt.Sprintf("user%d", i)
		email := fmt.Sprintf("user%d@huddle.local", i)

		var existing model.User
		if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
			continue
		}

		user := model.User{
			ID:       uuid.New(),
			Name:     fmt.Sprintf("User Number %d", i),
			Email:    email,
			Password: string(hashedPassword),
			IsOnline: i%3 == 0,
			Avatar:   fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s", username),
		}

		if err := db.Create(&user).Error; err != nil {
			log.Printf("❌ Failed to create user %s: %v", username, err)
		} else {
			log.Printf("✅ Created user: %s | Email: %s | Pass: %s", username, email, password)
		}
	}

	seedWorkspace(db)

	log.Println("🎉 Seeding completed!")
}

func seedWorkspace(db *gorm.DB) {
	var users []model.User
	if err := db.Limit(4).Find(&users).Error; err != nil || len(users) < 4 {
		return
	}

	admin := users[0]
	members := users[1:]

	var count int64
	db.Model(&model.Conversation{}).Where("name = ?", "Engineering").Count(&count)
	if count > 0 {
		return
	}

	now := time.Now()
	workspace := model.Conversation{
		ID:        uuid.New(),
		Name:      "Engineering",
		Type:      model.ConversationTypeWorkspace,
		Avatar:    "https://api.dicebear.com/7.x/initials/svg?seed=EN",
		CreatedBy: admin.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := db.Create(&workspace).Error; err != nil {
		log.Printf("❌ Failed to create workspace: %v", err)
		return
	}

	db.Create(&model.ConversationParticipant{
		ConversationID: workspace.ID,
		UserID:         admin.ID,
		Role:           model.RoleAdmin,
		JoinedAt:       now,
	})
	for _, m := range members {
		db.Create(&model.ConversationParticipant{
			ConversationID: workspace.ID,
			UserID:         m.ID,
			Role:           model.RoleMember,
			JoinedAt:       now,
		})
	}

	msg := model.Message{
		ID:             uuid.New(),
		ConversationID: workspace.ID,
		SenderID:       admin.ID,
		Content:        "Welcome to the Engineering workspace! 🚀",
		Type:           model.MessageTypeText,
		Status:         model.MessageStatusSent,
		Reactions:      model.ReactionsMap{},
		ReadBy:         model.ReadByMap{},
		CreatedAt:      now,
	}
	if err := db.Create(&msg).Error; err == nil {
		db.Model(&model.Conversation{}).Where("id = ?", workspace.ID).Updates(map[string]interface{}{
			"last_message_id":         msg.ID,
			"last_message_content":    msg.Content,
			"last_message_sender_id":  msg.SenderID,
			"last_message_type":       msg.Type,
			"last_message_created_at": msg.CreatedAt,
		})
	}

	log.Println("✅ Created demo workspace: 'Engineering' with 4 members")
}
