package service

import (
	"context"

	"park_api/internal/domain"
	"park_api/internal/repository"
)

type ClientService struct {
	clientRepo repository.ClientRepository
}

func NewClientService(clientRepo repository.ClientRepository) *ClientService {
	return &ClientService{clientRepo: clientRepo}
}

func (s *ClientService) Create(ctx context.Context, dto domain.ClientCreateDTO) (*domain.Client, error) {
	return s.clientRepo.Create(ctx, &domain.Client{Name: dto.Name, TaxID: dto.TaxID})
}

func (s *ClientService) GetByID(ctx context.Context, id int) (*domain.Client, error) {
	return s.clientRepo.FindByID(ctx, id)
}

func (s *ClientService) GetByTaxID(ctx context.Context, taxID string) (*domain.Client, error) {
	return s.clientRepo.FindByTaxID(ctx, taxID)
}

func (s *ClientService) List(ctx context.Context, page, size int) (*domain.ClientPage, error) {
	return s.clientRepo.FindAll(ctx, page, size)
}
