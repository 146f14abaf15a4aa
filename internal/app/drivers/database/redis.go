package database

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"clinreg-service/internal/app/config"
)

func NewRedisClient(driverConfig *config.DriverConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", driverConfig.Redis.Host, driverConfig.Redis.Port),
		Password: driverConfig.Redis.Password,
	})
	if err := client.Ping(context.TODO()).Err(); err != nil {
		log.Fatalf("Failed to ping or test the connection to redis: %s", err.Error())
	}
	log.Println("Successfully connected to redis")
	return client
}
