package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"homeserve/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsService mirrors bookings into a Google spreadsheet for the back
// office. The sheet is a read model; the database stays the source of truth.
type SheetsService struct {
	service         *sheets.Service
	bookingsSheetID string
}

func NewSheetsService(credentialsFile, bookingsSheetID string) (*SheetsService, error) {
	ctx := context.Background()

	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client := config.Client(ctx)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	return &SheetsService{
		service:         srv,
		bookingsSheetID: bookingsSheetID,
	}, nil
}

// TestConnection проверяет подключение к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.bookingsSheetID, "Bookings!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail возвращает email сервисного аккаунта
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}

	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// SyncBookings полностью перезаписывает лист Bookings
func (s *SheetsService) SyncBookings(ctx context.Context, bookings []*models.Booking) error {
	var values [][]interface{}

	headers := []interface{}{"Booking ID", "Customer", "Provider", "Service", "Status", "Date", "Slot", "Address", "Charge", "Tax", "Total", "Version", "Updated At"}
	values = append(values, headers)

	for _, b := range bookings {
		providerID := int64(0)
		if b.ProviderID != nil {
			providerID = *b.ProviderID
		}
		row := []interface{}{
			b.BookingID,
			b.CustomerID,
			providerID,
			b.ServiceName,
			b.Status,
			b.ScheduledDate.Format("2006-01-02"),
			fmt.Sprintf("%s-%s", b.TimeSlot.Start, b.TimeSlot.End),
			b.ServiceAddress,
			b.Pricing.ServiceCharge,
			b.Pricing.Tax,
			b.Pricing.Total,
			b.Version,
			b.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		values = append(values, row)
	}

	rangeData := fmt.Sprintf("Bookings!A1:M%d", len(values))
	valueRange := &sheets.ValueRange{Values: values}

	_, err := s.service.Spreadsheets.Values.Update(s.bookingsSheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()

	return err
}

// SyncHistory перезаписывает лист History журналом переходов
func (s *SheetsService) SyncHistory(ctx context.Context, entries []models.StatusHistoryEntry) error {
	var values [][]interface{}

	headers := []interface{}{"Booking ID", "Status", "Actor Role", "Actor ID", "At"}
	values = append(values, headers)

	for _, e := range entries {
		values = append(values, []interface{}{
			e.BookingID,
			e.Status,
			e.ActorRole,
			e.ActorID,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	rangeData := fmt.Sprintf("History!A1:E%d", len(values))
	valueRange := &sheets.ValueRange{Values: values}

	_, err := s.service.Spreadsheets.Values.Update(s.bookingsSheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()

	return err
}
