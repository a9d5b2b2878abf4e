package model

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/elasql/txn-estimator/estimator"
	"github.com/elasql/txn-estimator/estimator/dataset"
)

// ServerModel holds one linear model per OU for a single server.
type ServerModel struct {
	ServerID int
	Models   map[string]*LinearOuModel
}

// TrainServerModel fits one model per OU on the server's training rows.
func TrainServerModel(ds *dataset.OuDataSet, ridge float64) (*ServerModel, error) {
	if ds.Size() == 0 {
		logrus.Warnf("model: server %d has no training data, every OU predicts 0", ds.ServerID())
	}
	sm := &ServerModel{
		ServerID: ds.ServerID(),
		Models:   make(map[string]*LinearOuModel, len(estimator.OUNames)),
	}
	features := ds.Schema().Names()
	for _, ou := range estimator.OUNames {
		xs, ys, err := ds.TrainingRows(ou)
		if err != nil {
			return nil, fmt.Errorf("model: server %d: %w", ds.ServerID(), err)
		}
		m, err := Fit(ou, features, xs, ys, ridge)
		if err != nil {
			return nil, fmt.Errorf("model: server %d: %w", ds.ServerID(), err)
		}
		logrus.Debugf("model: server %d %s fitted on %d of %d rows", ds.ServerID(), ou, len(ys), ds.Size())
		sm.Models[ou] = m
	}
	return sm, nil
}

// ServerModelSet implements estimator.Predictor over the models of every server.
type ServerModelSet struct {
	servers []*ServerModel
}

var _ estimator.Predictor = (*ServerModelSet)(nil)

// NewServerModelSet indexes models by server id. Server ids must be exactly
// 0..len(servers)-1 and every server must have a model for every OU.
func NewServerModelSet(servers []*ServerModel) (*ServerModelSet, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("model set: no servers")
	}
	indexed := make([]*ServerModel, len(servers))
	for _, sm := range servers {
		if sm == nil || sm.ServerID < 0 || sm.ServerID >= len(servers) {
			return nil, fmt.Errorf("model set: server ids must cover 0..%d", len(servers)-1)
		}
		if indexed[sm.ServerID] != nil {
			return nil, fmt.Errorf("model set: duplicate server %d", sm.ServerID)
		}
		for _, ou := range estimator.OUNames {
			if sm.Models[ou] == nil {
				return nil, fmt.Errorf("model set: server %d has no model for %s", sm.ServerID, ou)
			}
		}
		indexed[sm.ServerID] = sm
	}
	return &ServerModelSet{servers: indexed}, nil
}

// ServerCount returns the number of servers.
func (s *ServerModelSet) ServerCount() int { return len(s.servers) }

// Server returns the models of one server.
func (s *ServerModelSet) Server(serverID int) *ServerModel { return s.servers[serverID] }

func (s *ServerModelSet) lookup(ou string, serverID int) (*LinearOuModel, error) {
	if serverID < 0 || serverID >= len(s.servers) {
		return nil, fmt.Errorf("model set: server %d of %d: %w", serverID, len(s.servers), estimator.ErrServerCount)
	}
	m, ok := s.servers[serverID].Models[ou]
	if !ok {
		return nil, fmt.Errorf("model set: %w %q", estimator.ErrUnknownOU, ou)
	}
	return m, nil
}

// Predict implements estimator.Predictor.
func (s *ServerModelSet) Predict(ou string, serverID int, rec estimator.FeatureRecord) (float64, error) {
	m, err := s.lookup(ou, serverID)
	if err != nil {
		return 0, err
	}
	return m.Predict(rec)
}

// Importance implements estimator.Predictor.
func (s *ServerModelSet) Importance(ou string, serverID int) ([]float64, error) {
	m, err := s.lookup(ou, serverID)
	if err != nil {
		return nil, err
	}
	return m.Importances, nil
}
