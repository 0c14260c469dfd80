package storage

import (
	"os"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock with the same methods as *Storage.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) OpenForRead(name string) (*os.File, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*os.File), args.Error(1)
}

func (m *MockStorage) WriteAtomic(name string, data []byte) error {
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockStorage) Remove(name string) error {
	args := m.Called(name)
	return args.Error(0)
}
