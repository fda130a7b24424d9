// directory.go implements the directory services: clients, affiliates, and
// insurers. Mutations go through the mutator so every change is audited;
// deletion is always soft. Affiliate national IDs are sealed with the field
// cipher before they reach the repository and never appear in audit metadata.
package services

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/auth"
	"github.com/insureline/insureline/internal/crypto"
	"github.com/insureline/insureline/internal/db/models"
	"github.com/insureline/insureline/internal/db/repositories"
	"github.com/insureline/insureline/internal/validation"
)

// DirectoryService manages clients, affiliates, and insurers.
type DirectoryService struct {
	clients    *repositories.ClientRepository
	affiliates *repositories.AffiliateRepository
	insurers   *repositories.InsurerRepository
	cipher     *crypto.FieldCipher
	mutator    *Mutator
}

// NewDirectoryService creates a new directory service
func NewDirectoryService(
	clients *repositories.ClientRepository,
	affiliates *repositories.AffiliateRepository,
	insurers *repositories.InsurerRepository,
	cipher *crypto.FieldCipher,
	mutator *Mutator,
) *DirectoryService {
	return &DirectoryService{
		clients:    clients,
		affiliates: affiliates,
		insurers:   insurers,
		cipher:     cipher,
		mutator:    mutator,
	}
}

func requireDirectoryRole(actor Actor) error {
	if !auth.CanManageDirectory(actor.Role) {
		return &ForbiddenError{Reason: "directory changes require admin or manager role"}
	}
	return nil
}

// === Clients ===

// CreateClientInput carries the fields for a new client.
type CreateClientInput struct {
	Name  string
	TaxID string
}

// CreateClient registers a new corporate client.
func (s *DirectoryService) CreateClient(ctx context.Context, actor Actor, meta RequestMeta, input CreateClientInput) (*models.Client, error) {
	if err := requireDirectoryRole(actor); err != nil {
		return nil, err
	}
	if err := validation.ValidateName("name", input.Name, 120); err != nil {
		return nil, &ValidationError{Field: "name", Message: err.Error()}
	}

	client := &models.Client{OrgID: actor.OrgID, Name: input.Name, Active: true}
	if input.TaxID != "" {
		taxID := input.TaxID
		client.TaxID = &taxID
	}

	err := s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		if err := s.clients.WithTx(tx).Create(ctx, client); err != nil {
			return nil, err
		}
		return &MutationRecord{
			Action:       models.ActionClientCreated,
			ResourceType: "client",
			ResourceID:   client.ID,
			Metadata:     map[string]interface{}{"name": client.Name},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// GetClient retrieves a client of the caller's organization.
func (s *DirectoryService) GetClient(ctx context.Context, actor Actor, id string) (*models.Client, error) {
	client, err := s.clients.GetByID(ctx, actor.OrgID, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, &NotFoundError{Resource: "client"}
	}
	return client, nil
}

// ListClients retrieves clients of the caller's organization.
func (s *DirectoryService) ListClients(ctx context.Context, actor Actor, limit, offset int) ([]*models.Client, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.clients.List(ctx, actor.OrgID, limit, offset)
}

// UpdateClient changes a client's name or tax ID.
func (s *DirectoryService) UpdateClient(ctx context.Context, actor Actor, meta RequestMeta, id string, input CreateClientInput) (*models.Client, error) {
	if err := requireDirectoryRole(actor); err != nil {
		return nil, err
	}
	client, err := s.GetClient(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateName("name", input.Name, 120); err != nil {
		return nil, &ValidationError{Field: "name", Message: err.Error()}
	}

	client.Name = input.Name
	client.TaxID = nil
	if input.TaxID != "" {
		taxID := input.TaxID
		client.TaxID = &taxID
	}

	err = s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		if err := s.clients.WithTx(tx).Update(ctx, client); err != nil {
			return nil, err
		}
		return &MutationRecord{
			Action:       models.ActionClientUpdated,
			ResourceType: "client",
			ResourceID:   client.ID,
			Metadata:     map[string]interface{}{"name": client.Name},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// DeactivateClient soft-deletes a client. Existing policies and claims keep
// their references; agents lose effective access on their next request.
func (s *DirectoryService) DeactivateClient(ctx context.Context, actor Actor, meta RequestMeta, id string) error {
	if err := requireDirectoryRole(actor); err != nil {
		return err
	}
	return s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		ok, err := s.clients.WithTx(tx).Deactivate(ctx, actor.OrgID, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &NotFoundError{Resource: "client"}
		}
		return &MutationRecord{
			Action:       models.ActionClientDeactivated,
			ResourceType: "client",
			ResourceID:   id,
		}, nil
	})
}

// GrantMembership links an agent user to a client.
func (s *DirectoryService) GrantMembership(ctx context.Context, actor Actor, userID, clientID string) error {
	if err := requireDirectoryRole(actor); err != nil {
		return err
	}
	client, err := s.GetClient(ctx, actor, clientID)
	if err != nil {
		return err
	}
	return s.clients.AddMembership(ctx, userID, client.ID)
}

// RevokeMembership removes an agent's access to a client. Takes effect on the
// agent's next request because scope is resolved per request.
func (s *DirectoryService) RevokeMembership(ctx context.Context, actor Actor, userID, clientID string) error {
	if err := requireDirectoryRole(actor); err != nil {
		return err
	}
	return s.clients.RemoveMembership(ctx, userID, clientID)
}

// === Affiliates ===

// AffiliateInput carries the fields for creating or updating an affiliate.
type AffiliateInput struct {
	ClientID   string
	UserID     string
	FirstName  string
	LastName   string
	Email      string
	NationalID string
	BirthDate  string
}

// CreateAffiliate registers a covered person under a client.
func (s *DirectoryService) CreateAffiliate(ctx context.Context, actor Actor, meta RequestMeta, input AffiliateInput) (*models.Affiliate, error) {
	if err := requireDirectoryRole(actor); err != nil {
		return nil, err
	}
	if err := validation.ValidateName("first_name", input.FirstName, 80); err != nil {
		return nil, &ValidationError{Field: "first_name", Message: err.Error()}
	}
	if err := validation.ValidateName("last_name", input.LastName, 80); err != nil {
		return nil, &ValidationError{Field: "last_name", Message: err.Error()}
	}
	if input.Email != "" {
		if err := validation.ValidateEmail("email", input.Email); err != nil {
			return nil, &ValidationError{Field: "email", Message: err.Error()}
		}
	}
	if input.BirthDate != "" {
		if err := validation.ValidateDate("birth_date", input.BirthDate); err != nil {
			return nil, &ValidationError{Field: "birth_date", Message: err.Error()}
		}
	}

	client, err := s.GetClient(ctx, actor, input.ClientID)
	if err != nil {
		return nil, err
	}

	sealed, err := s.cipher.Seal(input.NationalID)
	if err != nil {
		return nil, err
	}

	affiliate := &models.Affiliate{
		OrgID:               actor.OrgID,
		ClientID:            client.ID,
		FirstName:           input.FirstName,
		LastName:            input.LastName,
		NationalIDEncrypted: sealed,
		Active:              true,
	}
	if input.UserID != "" {
		userID := input.UserID
		affiliate.UserID = &userID
	}
	if input.Email != "" {
		email := input.Email
		affiliate.Email = &email
	}
	if input.BirthDate != "" {
		birthDate := input.BirthDate
		affiliate.BirthDate = &birthDate
	}

	err = s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		if err := s.affiliates.WithTx(tx).Create(ctx, affiliate); err != nil {
			return nil, err
		}
		// Names only; the national ID stays out of the audit trail.
		return &MutationRecord{
			Action:       models.ActionAffiliateCreated,
			ResourceType: "affiliate",
			ResourceID:   affiliate.ID,
			Metadata:     map[string]interface{}{"client_id": affiliate.ClientID},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return affiliate, nil
}

// GetAffiliate retrieves an affiliate of the caller's organization.
func (s *DirectoryService) GetAffiliate(ctx context.Context, actor Actor, id string) (*models.Affiliate, error) {
	affiliate, err := s.affiliates.GetByID(ctx, actor.OrgID, id)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, &NotFoundError{Resource: "affiliate"}
	}
	return affiliate, nil
}

// RevealNationalID decrypts an affiliate's national ID for an admin or
// manager caller.
func (s *DirectoryService) RevealNationalID(ctx context.Context, actor Actor, id string) (string, error) {
	if err := requireDirectoryRole(actor); err != nil {
		return "", err
	}
	affiliate, err := s.GetAffiliate(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return s.cipher.Open(affiliate.NationalIDEncrypted)
}

// ListAffiliates retrieves affiliates of one client.
func (s *DirectoryService) ListAffiliates(ctx context.Context, actor Actor, clientID string, limit, offset int) ([]*models.Affiliate, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.affiliates.ListByClient(ctx, actor.OrgID, clientID, limit, offset)
}

// UpdateAffiliate changes an affiliate's profile fields. A non-empty
// NationalID replaces the sealed value; an empty one leaves it unchanged.
func (s *DirectoryService) UpdateAffiliate(ctx context.Context, actor Actor, meta RequestMeta, id string, input AffiliateInput) (*models.Affiliate, error) {
	if err := requireDirectoryRole(actor); err != nil {
		return nil, err
	}
	affiliate, err := s.GetAffiliate(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateName("first_name", input.FirstName, 80); err != nil {
		return nil, &ValidationError{Field: "first_name", Message: err.Error()}
	}
	if err := validation.ValidateName("last_name", input.LastName, 80); err != nil {
		return nil, &ValidationError{Field: "last_name", Message: err.Error()}
	}

	affiliate.FirstName = input.FirstName
	affiliate.LastName = input.LastName
	affiliate.Email = nil
	if input.Email != "" {
		if err := validation.ValidateEmail("email", input.Email); err != nil {
			return nil, &ValidationError{Field: "email", Message: err.Error()}
		}
		email := input.Email
		affiliate.Email = &email
	}
	affiliate.BirthDate = nil
	if input.BirthDate != "" {
		if err := validation.ValidateDate("birth_date", input.BirthDate); err != nil {
			return nil, &ValidationError{Field: "birth_date", Message: err.Error()}
		}
		birthDate := input.BirthDate
		affiliate.BirthDate = &birthDate
	}
	affiliate.UserID = nil
	if input.UserID != "" {
		userID := input.UserID
		affiliate.UserID = &userID
	}
	if input.NationalID != "" {
		sealed, err := s.cipher.Seal(input.NationalID)
		if err != nil {
			return nil, err
		}
		affiliate.NationalIDEncrypted = sealed
	}

	err = s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		if err := s.affiliates.WithTx(tx).Update(ctx, affiliate); err != nil {
			return nil, err
		}
		return &MutationRecord{
			Action:       models.ActionAffiliateUpdated,
			ResourceType: "affiliate",
			ResourceID:   affiliate.ID,
			Metadata:     map[string]interface{}{"client_id": affiliate.ClientID},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return affiliate, nil
}

// DeactivateAffiliate soft-deletes an affiliate.
func (s *DirectoryService) DeactivateAffiliate(ctx context.Context, actor Actor, meta RequestMeta, id string) error {
	if err := requireDirectoryRole(actor); err != nil {
		return err
	}
	return s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		ok, err := s.affiliates.WithTx(tx).Deactivate(ctx, actor.OrgID, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &NotFoundError{Resource: "affiliate"}
		}
		return &MutationRecord{
			Action:       models.ActionAffiliateDeactivated,
			ResourceType: "affiliate",
			ResourceID:   id,
		}, nil
	})
}

// === Insurers ===

// InsurerInput carries the fields for creating or updating an insurer.
type InsurerInput struct {
	Name         string
	Code         string
	ContactEmail string
}

// CreateInsurer registers a carrier.
func (s *DirectoryService) CreateInsurer(ctx context.Context, actor Actor, meta RequestMeta, input InsurerInput) (*models.Insurer, error) {
	if err := requireDirectoryRole(actor); err != nil {
		return nil, err
	}
	if err := validation.ValidateName("name", input.Name, 120); err != nil {
		return nil, &ValidationError{Field: "name", Message: err.Error()}
	}
	if err := validation.ValidateReferenceNumber("code", input.Code); err != nil {
		return nil, &ValidationError{Field: "code", Message: err.Error()}
	}

	insurer := &models.Insurer{OrgID: actor.OrgID, Name: input.Name, Code: input.Code, Active: true}
	if input.ContactEmail != "" {
		if err := validation.ValidateEmail("contact_email", input.ContactEmail); err != nil {
			return nil, &ValidationError{Field: "contact_email", Message: err.Error()}
		}
		email := input.ContactEmail
		insurer.ContactEmail = &email
	}

	err := s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		if err := s.insurers.WithTx(tx).Create(ctx, insurer); err != nil {
			return nil, err
		}
		return &MutationRecord{
			Action:       models.ActionInsurerCreated,
			ResourceType: "insurer",
			ResourceID:   insurer.ID,
			Metadata:     map[string]interface{}{"code": insurer.Code},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return insurer, nil
}

// GetInsurer retrieves an insurer of the caller's organization.
func (s *DirectoryService) GetInsurer(ctx context.Context, actor Actor, id string) (*models.Insurer, error) {
	insurer, err := s.insurers.GetByID(ctx, actor.OrgID, id)
	if err != nil {
		return nil, err
	}
	if insurer == nil {
		return nil, &NotFoundError{Resource: "insurer"}
	}
	return insurer, nil
}

// ListInsurers retrieves insurers of the caller's organization.
func (s *DirectoryService) ListInsurers(ctx context.Context, actor Actor, limit, offset int) ([]*models.Insurer, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.insurers.List(ctx, actor.OrgID, limit, offset)
}

// UpdateInsurer changes an insurer's name or contact email. The code is
// immutable.
func (s *DirectoryService) UpdateInsurer(ctx context.Context, actor Actor, meta RequestMeta, id string, input InsurerInput) (*models.Insurer, error) {
	if err := requireDirectoryRole(actor); err != nil {
		return nil, err
	}
	insurer, err := s.GetInsurer(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateName("name", input.Name, 120); err != nil {
		return nil, &ValidationError{Field: "name", Message: err.Error()}
	}

	insurer.Name = input.Name
	insurer.ContactEmail = nil
	if input.ContactEmail != "" {
		if err := validation.ValidateEmail("contact_email", input.ContactEmail); err != nil {
			return nil, &ValidationError{Field: "contact_email", Message: err.Error()}
		}
		email := input.ContactEmail
		insurer.ContactEmail = &email
	}

	err = s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		if err := s.insurers.WithTx(tx).Update(ctx, insurer); err != nil {
			return nil, err
		}
		return &MutationRecord{
			Action:       models.ActionInsurerUpdated,
			ResourceType: "insurer",
			ResourceID:   insurer.ID,
			Metadata:     map[string]interface{}{"code": insurer.Code},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return insurer, nil
}

// DeactivateInsurer soft-deletes an insurer.
func (s *DirectoryService) DeactivateInsurer(ctx context.Context, actor Actor, meta RequestMeta, id string) error {
	if err := requireDirectoryRole(actor); err != nil {
		return err
	}
	return s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		ok, err := s.insurers.WithTx(tx).Deactivate(ctx, actor.OrgID, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &NotFoundError{Resource: "insurer"}
		}
		return &MutationRecord{
			Action:       models.ActionInsurerDeactivated,
			ResourceType: "insurer",
			ResourceID:   id,
		}, nil
	})
}
