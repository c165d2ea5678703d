package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"evride/internal/domain"
)

// ReceiptService handles receipt generation.
type ReceiptService struct {
	now func() time.Time
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService() *ReceiptService {
	return &ReceiptService{now: time.Now}
}

// GenerateReceipt builds the receipt of a completed ride. vehicle may be nil
// if the vehicle has since been removed.
func (s *ReceiptService) GenerateReceipt(ride *domain.Ride, vehicle *domain.Vehicle) *domain.Receipt {
	receipt := &domain.Receipt{
		ID:              uuid.New().String(),
		RideID:          ride.ID,
		UserID:          ride.UserID,
		VehicleID:       ride.VehicleID,
		DurationMinutes: ride.DurationMinutes,
		DistanceKm:      ride.DistanceKm,
		BaseFare:        ride.BaseFare,
		TimeFare:        ride.TimeFare,
		DistanceFare:    ride.DistanceFare,
		OriginalFare:    ride.OriginalFare,
		PointsRedeemed:  ride.PointsRedeemed,
		FinalFare:       ride.Fare,
		PointsEarned:    ride.PointsEarned,
		CarbonSavedKg:   ride.CarbonSavedKg,
		PaymentMethod:   ride.PaymentMethod,
		StartedAt:       ride.StartTime,
		EndedAt:         ride.EndTime,
		CreatedAt:       s.now(),
	}
	if ride.StartLocation != nil {
		receipt.StartLocation = *ride.StartLocation
	}
	if ride.EndLocation != nil {
		receipt.EndLocation = *ride.EndLocation
	}
	if vehicle != nil {
		receipt.VehicleNumber = vehicle.Number
		receipt.VehicleType = vehicle.Type
	}
	return receipt
}

// FormatReceipt formats the receipt as plain text (for email/print).
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("=====================================")
	line("          EV RIDE RECEIPT")
	line("=====================================")
	line("Receipt ID: %s", receipt.ID)
	line("Ride ID:    %s", receipt.RideID)
	line("Date:       %s", receipt.EndedAt.Format("Jan 02, 2006 3:04 PM"))
	line("")
	line("RIDE DETAILS")
	line("-------------------------------------")
	if receipt.VehicleNumber != "" {
		line("Vehicle:  %s (%s)", receipt.VehicleNumber, receipt.VehicleType)
	}
	line("From:     %s", formatLocation(receipt.StartLocation))
	line("To:       %s", formatLocation(receipt.EndLocation))
	line("Duration: %d min", receipt.DurationMinutes)
	line("Distance: %s km", formatFloat(receipt.DistanceKm))
	line("")
	line("FARE BREAKDOWN")
	line("-------------------------------------")
	line("Base Fare:        %s", formatFloat(receipt.BaseFare))
	line("Time:             %s", formatFloat(receipt.TimeFare))
	line("Distance:         %s", formatFloat(receipt.DistanceFare))
	line("Subtotal:         %s", formatFloat(receipt.OriginalFare))
	line("Points Redeemed: -%d", receipt.PointsRedeemed)
	line("-------------------------------------")
	line("TOTAL:            %s", formatFloat(receipt.FinalFare))
	line("")
	line("Paid by:       %s", receipt.PaymentMethod)
	line("Points earned: %d", receipt.PointsEarned)
	line("CO2 saved:     %s kg", formatFloat(receipt.CarbonSavedKg))
	line("=====================================")
	line("   Thank you for riding electric!")
	line("=====================================")

	return b.String()
}

func formatLocation(l domain.Location) string {
	if l.Address != "" {
		return fmt.Sprintf("%s (%.4f, %.4f)", l.Address, l.Lat, l.Lng)
	}
	return fmt.Sprintf("(%.4f, %.4f)", l.Lat, l.Lng)
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
