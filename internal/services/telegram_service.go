package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/jewelry/internal/models"
)

// TelegramService posts staff alerts to a Telegram chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     "https://api.telegram.org",
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// OrderNotification contains order data for the staff alert.
type OrderNotification struct {
	OrderID     string
	CatalogID   string
	Items       []OrderItemNotification
	TotalAmount decimal.Decimal
	UserName    string
	UserEmail   string
	UserPhone   string
	Notes       string
}

// OrderItemNotification contains order item data.
type OrderItemNotification struct {
	Name     string
	Size     string
	Quantity int
	Price    decimal.Decimal
}

func newOrderNotification(order models.Order, buyer *models.User) OrderNotification {
	items := make([]OrderItemNotification, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemNotification{
			Name:     item.Name,
			Size:     item.Size,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	return OrderNotification{
		OrderID:     order.ID.String(),
		CatalogID:   order.CatalogID.String(),
		Items:       items,
		TotalAmount: order.TotalAmount,
		UserName:    buyer.Name,
		UserEmail:   buyer.Email,
		UserPhone:   buyer.Phone,
		Notes:       order.Notes,
	}
}

// FormatPrice renders an amount with thousand separators and two decimals.
func FormatPrice(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var result strings.Builder
	if amount.IsNegative() {
		result.WriteByte('-')
	}
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(digit)
	}
	result.WriteByte('.')
	result.WriteString(frac)
	return result.String()
}

// NotifyNewOrder sends notification about new order to admin chat.
func (s *TelegramService) NotifyNewOrder(ctx context.Context, order OrderNotification) error {
	if s.adminChatID == "" || s.botToken == "" {
		return nil
	}
	return s.SendToAdmin(ctx, FormatOrderMessage(order))
}

// FormatOrderMessage renders the HTML alert text for a new order.
func FormatOrderMessage(order OrderNotification) string {
	var itemsList strings.Builder
	for i, item := range order.Items {
		label := html.EscapeString(item.Name)
		if item.Size != "" {
			label += " (" + html.EscapeString(item.Size) + ")"
		}
		lineTotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		itemsList.WriteString(fmt.Sprintf("%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			label,
			item.Quantity,
			FormatPrice(item.Price),
			FormatPrice(lineTotal),
		))
	}

	message := fmt.Sprintf(`<b>New order</b>
<b>Order:</b> %s
<b>Customer:</b> %s
<b>Email:</b> %s
<b>Phone:</b> %s
<b>Items:</b>
%s
<b>Total:</b> %s`,
		order.OrderID,
		html.EscapeString(order.UserName),
		html.EscapeString(order.UserEmail),
		html.EscapeString(order.UserPhone),
		itemsList.String(),
		FormatPrice(order.TotalAmount),
	)
	if order.Notes != "" {
		message += "\n<b>Notes:</b> " + html.EscapeString(order.Notes)
	}

	return strings.TrimSpace(message)
}
