package services

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockDocumentEncoder struct {
	mock.Mock
}

func (m *MockDocumentEncoder) EncodeSpreadsheet(projection SpreadsheetProjection) ([]byte, string, error) {
	args := m.Called(projection)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *MockDocumentEncoder) EncodeAttachmentDocument(ledgerName string, pages []RenderedPage) ([]byte, string, error) {
	args := m.Called(ledgerName, pages)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

type MockAttachmentFetcher struct {
	mock.Mock
}

func (m *MockAttachmentFetcher) Fetch(ctx context.Context, ref string) ([]byte, string, int, int, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, "", 0, 0, args.Error(4)
	}
	return args.Get(0).([]byte), args.String(1), args.Int(2), args.Int(3), args.Error(4)
}
