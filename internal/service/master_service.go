package service

import (
	"context"
	"strings"

	"garmentflow/internal/model"
	"garmentflow/internal/repository"
	"garmentflow/pkg/apperror"
)

// DTOs

type BuyerRequest struct {
	Code           string `json:"code" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Country        string `json:"country"`
	ContactPerson  string `json:"contact_person"`
	LeftoverPolicy string `json:"leftover_policy" binding:"omitempty,oneof=reuse return dispose"`
}

type StyleRequest struct {
	BuyerID     string `json:"buyer_id" binding:"required,uuid"`
	StyleCode   string `json:"style_code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Article     string `json:"article"`
	Description string `json:"description"`
}

type MasterService interface {
	ListBuyers(ctx context.Context, search string, page, limit int) ([]model.Buyer, int64, error)
	GetBuyer(ctx context.Context, id string) (*model.Buyer, error)
	CreateBuyer(ctx context.Context, actor Actor, req BuyerRequest) (*model.Buyer, error)
	UpdateBuyer(ctx context.Context, actor Actor, id string, req BuyerRequest) (*model.Buyer, error)
	DeleteBuyer(ctx context.Context, actor Actor, id string) error

	ListStyles(ctx context.Context, buyerID, search string, page, limit int) ([]model.Style, int64, error)
	GetStyle(ctx context.Context, id string) (*model.Style, error)
	CreateStyle(ctx context.Context, actor Actor, req StyleRequest) (*model.Style, error)
	UpdateStyle(ctx context.Context, actor Actor, id string, req StyleRequest) (*model.Style, error)
	DeleteStyle(ctx context.Context, actor Actor, id string) error
}

type masterService struct {
	masterRepo repository.MasterRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
}

func NewMasterService(masterRepo repository.MasterRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) MasterService {
	return &masterService{
		masterRepo: masterRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
	}
}

func (s *masterService) ListBuyers(ctx context.Context, search string, page, limit int) ([]model.Buyer, int64, error) {
	page, limit = normalizePage(page, limit)
	buyers, total, err := s.masterRepo.ListBuyers(ctx, search, page, limit)
	if err != nil {
		return nil, 0, apperror.Internal("failed to list buyers", err)
	}
	return buyers, total, nil
}

func (s *masterService) GetBuyer(ctx context.Context, id string) (*model.Buyer, error) {
	buyerID, err := parseID(id, "buyer")
	if err != nil {
		return nil, err
	}
	buyer, err := s.masterRepo.FindBuyer(ctx, buyerID)
	if err != nil {
		return nil, lookupErr(err, apperror.CodeNotFound, "buyer")
	}
	return buyer, nil
}

func (s *masterService) CreateBuyer(ctx context.Context, actor Actor, req BuyerRequest) (*model.Buyer, error) {
	buyer := &model.Buyer{
		Code:           strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:           req.Name,
		Country:        req.Country,
		ContactPerson:  req.ContactPerson,
		LeftoverPolicy: req.LeftoverPolicy,
	}
	if buyer.LeftoverPolicy == "" {
		buyer.LeftoverPolicy = model.LeftoverReuse
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.masterRepo.CreateBuyer(txCtx, buyer); err != nil {
			if isDuplicateKey(err) {
				return apperror.Conflict(apperror.CodeDuplicate, "buyer code %s already exists", buyer.Code)
			}
			return apperror.Internal("failed to create buyer", err)
		}
		if err := s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionCreateBuyer, buyer.ID.String(), buyer.Name, req)); err != nil {
			return apperror.Internal("failed to write audit log", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buyer, nil
}

func (s *masterService) UpdateBuyer(ctx context.Context, actor Actor, id string, req BuyerRequest) (*model.Buyer, error) {
	buyerID, err := parseID(id, "buyer")
	if err != nil {
		return nil, err
	}

	var buyer *model.Buyer
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		buyer, err = s.masterRepo.FindBuyer(txCtx, buyerID)
		if err != nil {
			return lookupErr(err, apperror.CodeNotFound, "buyer")
		}
		buyer.Code = strings.ToUpper(strings.TrimSpace(req.Code))
		buyer.Name = req.Name
		buyer.Country = req.Country
		buyer.ContactPerson = req.ContactPerson
		if req.LeftoverPolicy != "" {
			buyer.LeftoverPolicy = req.LeftoverPolicy
		}
		if err := s.masterRepo.UpdateBuyer(txCtx, buyer); err != nil {
			if isDuplicateKey(err) {
				return apperror.Conflict(apperror.CodeDuplicate, "buyer code %s already exists", buyer.Code)
			}
			return apperror.Internal("failed to update buyer", err)
		}
		if err := s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionUpdateBuyer, buyer.ID.String(), buyer.Name, req)); err != nil {
			return apperror.Internal("failed to write audit log", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buyer, nil
}

func (s *masterService) DeleteBuyer(ctx context.Context, actor Actor, id string) error {
	buyerID, err := parseID(id, "buyer")
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		buyer, err := s.masterRepo.FindBuyer(txCtx, buyerID)
		if err != nil {
			return lookupErr(err, apperror.CodeNotFound, "buyer")
		}
		count, err := s.masterRepo.CountOrdersForBuyer(txCtx, buyerID)
		if err != nil {
			return apperror.Internal("failed to count orders", err)
		}
		if count > 0 {
			return apperror.Conflict(apperror.CodeInvalidInput, "buyer %s still has %d orders", buyer.Name, count)
		}
		if err := s.masterRepo.DeleteBuyer(txCtx, buyerID); err != nil {
			return apperror.Internal("failed to delete buyer", err)
		}
		if err := s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionDeleteBuyer, buyer.ID.String(), buyer.Name, nil)); err != nil {
			return apperror.Internal("failed to write audit log", err)
		}
		return nil
	})
}

func (s *masterService) ListStyles(ctx context.Context, buyerID, search string, page, limit int) ([]model.Style, int64, error) {
	if buyerID != "" {
		if _, err := parseID(buyerID, "buyer"); err != nil {
			return nil, 0, err
		}
	}
	page, limit = normalizePage(page, limit)
	styles, total, err := s.masterRepo.ListStyles(ctx, buyerID, search, page, limit)
	if err != nil {
		return nil, 0, apperror.Internal("failed to list styles", err)
	}
	return styles, total, nil
}

func (s *masterService) GetStyle(ctx context.Context, id string) (*model.Style, error) {
	styleID, err := parseID(id, "style")
	if err != nil {
		return nil, err
	}
	style, err := s.masterRepo.FindStyle(ctx, styleID)
	if err != nil {
		return nil, lookupErr(err, apperror.CodeNotFound, "style")
	}
	return style, nil
}

func (s *masterService) CreateStyle(ctx context.Context, actor Actor, req StyleRequest) (*model.Style, error) {
	buyerID, err := parseID(req.BuyerID, "buyer")
	if err != nil {
		return nil, err
	}
	style := &model.Style{
		BuyerID:     buyerID,
		StyleCode:   strings.ToUpper(strings.TrimSpace(req.StyleCode)),
		Name:        req.Name,
		Article:     req.Article,
		Description: req.Description,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.masterRepo.FindBuyer(txCtx, buyerID); err != nil {
			return lookupErr(err, apperror.CodeNotFound, "buyer")
		}
		if err := s.masterRepo.CreateStyle(txCtx, style); err != nil {
			if isDuplicateKey(err) {
				return apperror.Conflict(apperror.CodeDuplicate, "style code %s already exists", style.StyleCode)
			}
			return apperror.Internal("failed to create style", err)
		}
		if err := s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionCreateStyle, style.ID.String(), style.StyleCode, req)); err != nil {
			return apperror.Internal("failed to write audit log", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return style, nil
}

func (s *masterService) UpdateStyle(ctx context.Context, actor Actor, id string, req StyleRequest) (*model.Style, error) {
	styleID, err := parseID(id, "style")
	if err != nil {
		return nil, err
	}
	buyerID, err := parseID(req.BuyerID, "buyer")
	if err != nil {
		return nil, err
	}

	var style *model.Style
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		style, err = s.masterRepo.FindStyle(txCtx, styleID)
		if err != nil {
			return lookupErr(err, apperror.CodeNotFound, "style")
		}
		if style.BuyerID != buyerID {
			count, err := s.masterRepo.CountOrdersForStyle(txCtx, styleID)
			if err != nil {
				return apperror.Internal("failed to count orders", err)
			}
			if count > 0 {
				return apperror.Conflict(apperror.CodeInvalidInput, "style %s has orders and cannot change buyer", style.StyleCode)
			}
			buyer, err := s.masterRepo.FindBuyer(txCtx, buyerID)
			if err != nil {
				return lookupErr(err, apperror.CodeNotFound, "buyer")
			}
			style.Buyer = buyer
		}

		style.BuyerID = buyerID
		style.StyleCode = strings.ToUpper(strings.TrimSpace(req.StyleCode))
		style.Name = req.Name
		style.Article = req.Article
		style.Description = req.Description
		if err := s.masterRepo.UpdateStyle(txCtx, style); err != nil {
			if isDuplicateKey(err) {
				return apperror.Conflict(apperror.CodeDuplicate, "style code %s already exists", style.StyleCode)
			}
			return apperror.Internal("failed to update style", err)
		}
		if err := s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionUpdateStyle, style.ID.String(), style.StyleCode, req)); err != nil {
			return apperror.Internal("failed to write audit log", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return style, nil
}

func (s *masterService) DeleteStyle(ctx context.Context, actor Actor, id string) error {
	styleID, err := parseID(id, "style")
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		style, err := s.masterRepo.FindStyle(txCtx, styleID)
		if err != nil {
			return lookupErr(err, apperror.CodeNotFound, "style")
		}
		count, err := s.masterRepo.CountOrdersForStyle(txCtx, styleID)
		if err != nil {
			return apperror.Internal("failed to count orders", err)
		}
		if count > 0 {
			return apperror.Conflict(apperror.CodeInvalidInput, "style %s still has %d orders", style.StyleCode, count)
		}
		if err := s.masterRepo.DeleteStyle(txCtx, styleID); err != nil {
			return apperror.Internal("failed to delete style", err)
		}
		if err := s.auditRepo.Log(txCtx, auditEntry(actor, model.ActionDeleteStyle, style.ID.String(), style.StyleCode, nil)); err != nil {
			return apperror.Internal("failed to write audit log", err)
		}
		return nil
	})
}
