package seeder

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/infinitetech/repairdesk/internal/entity"
	"github.com/infinitetech/repairdesk/internal/service/booking"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

var (
	devices      = []string{"Smartphone", "Laptop", "Tablet", "Desktop", "Game Console", "Smartwatch"}
	issues       = []string{"Cracked screen", "Battery drains fast", "Will not power on", "Water damage", "Charging port loose", "Overheating"}
	serviceTypes = []string{"Drop-off", "Mail-in", "On-site"}
	slots        = []string{"09:00", "10:30", "12:00", "14:30", "16:00"}
)

// Result summarises a seeding run.
type Result struct {
	Created  int
	Archived int
}

// Seeder creates demo bookings for local/dev setups.
type Seeder struct {
	bookings *booking.Service
	logger   *zap.Logger
	faker    *gofakeit.Faker
}

// New constructs a Seeder that writes through the booking service.
func New(svc *booking.Service, logger *zap.Logger) *Seeder {
	return &Seeder{bookings: svc, logger: logger, faker: gofakeit.New(0)}
}

// WithSeed makes subsequent runs reproducible.
func (s *Seeder) WithSeed(seed uint64) *Seeder {
	s.faker = gofakeit.New(seed)
	return s
}

// Bookings creates count bookings spread over every status and archives every fifth one.
func (s *Seeder) Bookings(ctx context.Context, count int) (Result, error) {
	var res Result
	statuses := entity.Statuses()

	for i := 0; i < count; i++ {
		created, err := s.bookings.Create(ctx, booking.CreateInput{
			CustomerName:     s.faker.Name(),
			Email:            s.faker.Email(),
			Phone:            s.faker.Phone(),
			DeviceType:       pick(s.faker, devices),
			IssueDescription: pick(s.faker, issues),
			ServiceType:      pick(s.faker, serviceTypes),
			Location:         s.faker.Street(),
			BookingDate:      s.faker.Date().Format("2006-01-02"),
			BookingTime:      pick(s.faker, slots),
		})
		if err != nil {
			return res, fmt.Errorf("seed booking %d: %w", i, err)
		}
		res.Created++

		status := statuses[i%len(statuses)]
		if status != entity.StatusBooked {
			if _, err := s.bookings.UpdateStatus(ctx, created.ID, string(status)); err != nil {
				return res, fmt.Errorf("seed status for %s: %w", created.TrackingID, err)
			}
		}

		if (i+1)%5 == 0 {
			if _, err := s.bookings.Archive(ctx, created.ID); err != nil {
				return res, fmt.Errorf("seed archive for %s: %w", created.TrackingID, err)
			}
			res.Archived++
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded bookings", zap.Int("created", res.Created), zap.Int("archived", res.Archived))
	}
	return res, nil
}

func pick(f *gofakeit.Faker, values []string) string {
	return values[f.IntN(len(values))]
}
