package stores

import (
	"os"

	"gigchat/core"
	"gigchat/stores/memory"
	"gigchat/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// Store is the union of every persistence collaborator the messaging core
// talks to. Both backends implement all of them.
type Store interface {
	core.ChatStore
	core.MessageStore
	core.NotificationStore
	core.UserStore
}

func GetStore() Store {
	storageType := os.Getenv("STORAGE_TYPE")
	var store Store

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "gigchat.db" // Default filename
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
