package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/go-playground/validator/v10"
)

var contactValidate = validator.New()

// EnquiryRequest is a bulk-order enquiry from the storefront
type EnquiryRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"omitempty,min=10,max=15"`
	Company   string `json:"company" validate:"max=160"`
	ProductID *int64 `json:"product_id"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
	Message   string `json:"message" validate:"required,max=4000"`
}

// MessageRequest is a contact-form submission
type MessageRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,min=10,max=15"`
	Subject string `json:"subject" validate:"max=200"`
	Body    string `json:"body" validate:"required,max=4000"`
	OrderID *int64 `json:"order_id"`
}

// ContactService accepts enquiries and messages from shoppers
type ContactService struct {
	repo ContactRepository
}

// NewContactService creates a new contact service
func NewContactService(repo ContactRepository) *ContactService {
	return &ContactService{repo: repo}
}

// SubmitEnquiry stores a bulk-order enquiry
func (s *ContactService) SubmitEnquiry(ctx context.Context, req *EnquiryRequest) (*models.Enquiry, error) {
	ctx, span := util.StartSpan(ctx, "ContactService.SubmitEnquiry")
	defer span.End()

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := checkStruct(req); err != nil {
		return nil, err
	}

	enquiry := &models.Enquiry{
		Name:      strings.TrimSpace(req.Name),
		Email:     req.Email,
		Phone:     strings.TrimSpace(req.Phone),
		Company:   strings.TrimSpace(req.Company),
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Message:   strings.TrimSpace(req.Message),
		Status:    models.EnquiryStatusNew,
	}
	if err := s.repo.CreateEnquiry(ctx, enquiry); err != nil {
		return nil, fmt.Errorf("failed to save enquiry: %w", err)
	}
	return enquiry, nil
}

// SubmitMessage stores a contact-form message
func (s *ContactService) SubmitMessage(ctx context.Context, req *MessageRequest) (*models.Message, error) {
	ctx, span := util.StartSpan(ctx, "ContactService.SubmitMessage")
	defer span.End()

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := checkStruct(req); err != nil {
		return nil, err
	}

	msg := &models.Message{
		Name:    strings.TrimSpace(req.Name),
		Email:   req.Email,
		Phone:   strings.TrimSpace(req.Phone),
		Subject: strings.TrimSpace(req.Subject),
		Body:    strings.TrimSpace(req.Body),
		OrderID: req.OrderID,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return msg, nil
}

func checkStruct(v interface{}) error {
	err := contactValidate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return invalid("%s failed %s", strings.ToLower(fe.Field()), fe.Tag())
	}
	return invalid("%v", err)
}
