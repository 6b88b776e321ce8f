package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glowdesk/booking-engine/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	tenantIDs, err := seedTenants(context.Background(), pool, 5)
	if err != nil {
		log.Fatalf("seed tenants: %v", err)
	}

	for _, tenantID := range tenantIDs {
		serviceIDs, err := seedServices(context.Background(), pool, tenantID)
		if err != nil {
			log.Fatalf("seed services: %v", err)
		}
		if err := seedStaff(context.Background(), pool, tenantID, serviceIDs, 8); err != nil {
			log.Fatalf("seed staff: %v", err)
		}
		if err := seedClients(context.Background(), pool, tenantID, 500); err != nil {
			log.Fatalf("seed clients: %v", err)
		}
	}

	log.Println("seed complete")
}

func seedTenants(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d tenants", count)

	timezones := []string{"UTC", "America/New_York", "Europe/Berlin", "Europe/Madrid", "Asia/Tokyo"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	businessHours, err := json.Marshal(map[string]map[string]string{
		"monday":    {"open": "09:00", "close": "18:00"},
		"tuesday":   {"open": "09:00", "close": "18:00"},
		"wednesday": {"open": "09:00", "close": "18:00"},
		"thursday":  {"open": "09:00", "close": "20:00"},
		"friday":    {"open": "09:00", "close": "18:00"},
		"saturday":  {"open": "10:00", "close": "14:00"},
	})
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Company()
		tz := timezones[i%len(timezones)]

		_, err := tx.Exec(ctx, `
			INSERT INTO tenants (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, name)
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO tenant_policies (tenant_id, min_notice_reschedule_minutes, min_notice_cancel_minutes, business_hours, timezone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, id, 24*60, 2*60, businessHours, tz)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("tenants seeded")
	return ids, nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID) ([]uuid.UUID, error) {
	services := []struct {
		name       string
		minutes    int
		priceCents int64
	}{
		{"Haircut", 30, 3500},
		{"Color & Highlights", 90, 12000},
		{"Blowout", 45, 5000},
		{"Deep Conditioning", 60, 6500},
		{"Consultation", 15, 0},
		{"Full Facial", 60, 9000},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(services))
	for _, s := range services {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, tenant_id, name, duration_minutes, price_cents, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, id, tenantID, s.name, s.minutes, s.priceCents)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID, serviceIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d staff for tenant %s", count, tenantID)

	workingHours, err := json.Marshal(map[string]map[string]string{
		"monday":    {"open": "09:00", "close": "17:00"},
		"tuesday":   {"open": "09:00", "close": "17:00"},
		"wednesday": {"open": "09:00", "close": "17:00"},
		"thursday":  {"open": "11:00", "close": "20:00"},
		"friday":    {"open": "09:00", "close": "17:00"},
	})
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()

		// Half the staff offer everything, half a random subset.
		var specialties []uuid.UUID
		if i%2 == 1 {
			n := gofakeit.Number(1, len(serviceIDs))
			specialties = append(specialties, serviceIDs[:n]...)
		}
		specJSON, err := json.Marshal(specialties)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO staff (id, tenant_id, name, specialties, working_hours, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, id, tenantID, name, specJSON, workingHours)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID, count int) error {
	log.Printf("seeding %d clients for tenant %s", count, tenantID)

	const batchSize = 250

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()
			phone := gofakeit.Phone()

			_, err := tx.Exec(ctx, `
				INSERT INTO clients (id, tenant_id, name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, id, tenantID, name, email, phone)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("clients seeded: %d/%d", end, count)
	}

	return nil
}
