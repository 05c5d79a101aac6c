package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fleetsim uploads synthetic Fleetcare telemetry blobs and fires the
// matching blob-created notifications at the harvester webhook.

const timestampLayout = "02/01/2006 03:04:05 PM"

type simConfig struct {
	WebhookURL string
	Bucket     string
	Region     string
	Endpoint   string
	Vehicles   int
	Batch      int
	Interval   time.Duration
	SkewRate   float64
	BadRate    float64
	Timezone   string
}

type vehicle struct {
	id   string
	rego string
	lon  float64
	lat  float64
	head float64
	seq  int64
}

func main() {
	cfg := loadSimConfig()
	logger := log.New(os.Stdout, "fleetsim ", log.LstdFlags)
	rand.Seed(time.Now().UnixNano())

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatalf("timezone error: %v", err)
	}

	ctx := context.Background()
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		logger.Fatalf("aws config error: %v", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	fleet := make([]*vehicle, 0, cfg.Vehicles)
	for i := 0; i < cfg.Vehicles; i++ {
		fleet = append(fleet, &vehicle{
			id:   strconv.Itoa(1000 + i),
			rego: fmt.Sprintf("1SIM%03d", i),
			lon:  115.86 + rand.Float64()*0.2 - 0.1,
			lat:  -31.95 + rand.Float64()*0.2 - 0.1,
			head: rand.Float64() * 360,
		})
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	logger.Printf("simulating %d vehicles every %s against %s", cfg.Vehicles, cfg.Interval, cfg.WebhookURL)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for range ticker.C {
		batch := fleet
		if cfg.Batch > 0 && cfg.Batch < len(fleet) {
			batch = fleet[:cfg.Batch]
			rand.Shuffle(len(fleet), func(i, j int) { fleet[i], fleet[j] = fleet[j], fleet[i] })
		}
		if err := emitBatch(ctx, client, httpClient, cfg, loc, batch); err != nil {
			logger.Printf("emit error: %v", err)
		}
	}
}

func emitBatch(ctx context.Context, client *s3.Client, httpClient *http.Client, cfg simConfig, loc *time.Location, batch []*vehicle) error {
	type gridEvent struct {
		EventType string `json:"eventType"`
		Data      struct {
			URL string `json:"url"`
		} `json:"data"`
	}

	events := make([]gridEvent, 0, len(batch))
	for _, v := range batch {
		v.step()
		content := v.payload(cfg, loc)
		key := fmt.Sprintf("fleetcare/%s/%d.json", v.id, v.seq)

		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(cfg.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(content),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}

		var event gridEvent
		event.EventType = "Microsoft.Storage.BlobCreated"
		event.Data.URL = fmt.Sprintf("https://%s.blob.example/%s", cfg.Bucket, key)
		events = append(events, event)
	}

	body, err := json.Marshal(events)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(cfg.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

func (v *vehicle) step() {
	v.seq++
	v.head += rand.Float64()*30 - 15
	if v.head < 0 {
		v.head += 360
	}
	if v.head >= 360 {
		v.head -= 360
	}
	v.lon += rand.Float64()*0.002 - 0.001
	v.lat += rand.Float64()*0.002 - 0.001
}

func (v *vehicle) payload(cfg simConfig, loc *time.Location) []byte {
	seen := time.Now().In(loc)
	if cfg.SkewRate > 0 && rand.Float64() < cfg.SkewRate {
		// Device clock configured for the wrong timezone.
		seen = seen.Add(3 * time.Hour)
	}
	if cfg.BadRate > 0 && rand.Float64() < cfg.BadRate {
		return []byte(`{"vehicleID": ""}`)
	}

	payload := map[string]any{
		"vehicleID":   v.id,
		"vehicleRego": v.rego,
		"GPS": map[string]any{
			"coordinates": []float64{v.lon, v.lat},
		},
		"readings": map[string]any{
			"vehicleHeading":  fmt.Sprintf("%.1f", v.head),
			"vehicleSpeed":    rand.Float64() * 110,
			"vehicleAltitude": 10 + rand.Float64()*50,
		},
		"timestamp": seen.Format(timestampLayout),
	}
	body, _ := json.Marshal(payload)
	return body
}

func loadSimConfig() simConfig {
	cfg := simConfig{
		WebhookURL: getenvDefault("FLEETSIM_WEBHOOK_URL", "http://localhost:8080/"),
		Bucket:     getenvDefault("FLEETSIM_BUCKET", ""),
		Region:     getenvDefault("FLEETSIM_REGION", ""),
		Endpoint:   getenvDefault("FLEETSIM_ENDPOINT", ""),
		Vehicles:   getenvIntDefault("FLEETSIM_VEHICLES", 10),
		Batch:      getenvIntDefault("FLEETSIM_BATCH", 0),
		Interval:   getenvDuration("FLEETSIM_INTERVAL", 10*time.Second),
		SkewRate:   getenvFloatDefault("FLEETSIM_SKEW_RATE", 0),
		BadRate:    getenvFloatDefault("FLEETSIM_BAD_RATE", 0),
		Timezone:   getenvDefault("FLEETSIM_TZ", "Australia/Perth"),
	}
	if cfg.Bucket == "" {
		log.Fatal("FLEETSIM_BUCKET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
