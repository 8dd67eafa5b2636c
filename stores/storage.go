package stores

import (
	"social-server/config"
	"social-server/core"
	"social-server/stores/memory"
	"social-server/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// Store is a union interface that includes all store types.
type Store interface {
	core.MessageStore
	core.GroupStore
	core.NotificationStore
}

func GetStore(cfg *config.Config) Store {
	var store Store

	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		s, err := sqlite.NewStore(cfg.DataSourceName)
		if err != nil {
			logrus.WithFields(storageField).WithError(err).Fatal("Failed to open storage")
		}
		store = s
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
