package db_test

import (
	"github.com/stretchr/testify/mock"
	"github.com/walteh/lexdb/pkg/diagnostic"
	"github.com/walteh/lexdb/pkg/parse"
	"github.com/walteh/lexdb/pkg/token"
)

type MockParser struct {
	mock.Mock
}

func (m *MockParser) ParseFile(db parse.Db, tree token.TokenTree) ([]parse.Item, []diagnostic.Diagnostic) {
	args := m.Called(db, tree)
	var items []parse.Item
	if args.Get(0) != nil {
		items = args.Get(0).([]parse.Item)
	}
	var diags []diagnostic.Diagnostic
	if args.Get(1) != nil {
		diags = args.Get(1).([]diagnostic.Diagnostic)
	}
	return items, diags
}
