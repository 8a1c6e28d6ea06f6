// Package test holds integration tests against real Postgres and Kafka instances.
// The tests are skipped unless POSTGRES and KAFKA_BROKERS are set.
package test

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/suite"

	"github.com/relabs-tech/jsonserver/core/backend"
	"github.com/relabs-tech/jsonserver/core/client"
	"github.com/relabs-tech/jsonserver/core/csql"
	"github.com/relabs-tech/jsonserver/core/document"
	"github.com/relabs-tech/jsonserver/core/notifier"
	"github.com/relabs-tech/jsonserver/core/service"
	"github.com/relabs-tech/jsonserver/core/storage"
)

// Environment is the configuration of the integration tests
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker" and KAFKA_BROKERS="localhost:9092"
type Environment struct {
	Postgres         string `env:"POSTGRES,optional" description:"the connection string for the Postgres DB without password"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	KafkaBrokers     string `env:"KAFKA_BROKERS,optional" description:"the connection string for the Kafka brokers"`
}

// IntegrationTestSuite serves a document stored in Postgres which publishes its
// changes to Kafka
type IntegrationTestSuite struct {
	suite.Suite

	env          Environment
	db           *csql.DB
	documentName string
	topic        string
	kafkaConn    *kafka.Conn
	notifier     *notifier.Kafka
	service      *service.Service
	router       *mux.Router
	client       client.Client
}

func (s *IntegrationTestSuite) createTopic(topic string, numPartitions int) error {
	if s.kafkaConn == nil {
		return fmt.Errorf("kafka connection is not established")
	}
	err := s.kafkaConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	return nil
}

func (s *IntegrationTestSuite) deleteTopic(topic string) error {
	if s.kafkaConn == nil {
		return fmt.Errorf("kafka connection is not established")
	}
	if err := s.kafkaConn.DeleteTopics(topic); err != nil {
		return fmt.Errorf("failed to delete topic %s: %w", topic, err)
	}
	return nil
}

func (s *IntegrationTestSuite) brokers() []string {
	return strings.Split(s.env.KafkaBrokers, ",")
}

// newDriver returns a new driver for the document of the suite
func (s *IntegrationTestSuite) newDriver(ctx context.Context) *storage.Postgres {
	driver, err := storage.NewPostgres(ctx, s.db, storage.PostgresConfiguration{Name: s.documentName})
	s.Require().NoError(err)
	return driver
}

func (s *IntegrationTestSuite) SetupSuite() {
	if err := envdecode.Decode(&s.env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		s.Require().NoError(err)
	}
	if s.env.Postgres == "" || s.env.KafkaBrokers == "" {
		s.T().Skip("POSTGRES and KAFKA_BROKERS must be set for integration tests")
	}
	ctx := context.Background()

	dataSource := s.env.Postgres
	if s.env.PostgresPassword != "" {
		dataSource += " password=" + s.env.PostgresPassword
	}
	var err error
	s.db, err = csql.OpenWithSchema(dataSource, "jsonserver_test")
	s.Require().NoError(err)

	s.kafkaConn, err = kafka.Dial("tcp", s.brokers()[0])
	s.Require().NoError(err)
	s.topic = "jsonserver-test-" + uuid.New().String()
	s.Require().NoError(s.createTopic(s.topic, 1))

	s.notifier, err = notifier.NewKafka(notifier.KafkaConfiguration{
		Brokers: s.env.KafkaBrokers,
		Topic:   s.topic,
	})
	s.Require().NoError(err)

	s.documentName = "test-" + uuid.New().String()
	s.Require().NoError(s.newDriver(ctx).Save(ctx, mustDecode(documentJSON)))

	s.service, err = service.New(ctx, &service.Builder{Driver: s.newDriver(ctx), Notifier: s.notifier})
	s.Require().NoError(err)

	s.router = mux.NewRouter()
	backend.New(&backend.Builder{
		Service: s.service,
		Router:  s.router,
		Prefix:  "/api",
	})
	s.client = client.NewWithRouter(s.router).WithPrefix("/api")
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.notifier != nil {
		s.notifier.Close()
	}
	if s.kafkaConn != nil {
		s.deleteTopic(s.topic)
		s.kafkaConn.Close()
	}
	if s.db != nil {
		s.db.Exec(`DELETE FROM `+s.db.Table("jsonserver_documents")+` WHERE name = $1;`, s.documentName)
		s.db.Close()
	}
}

func mustDecode(data string) document.Document {
	doc, err := storage.Decode([]byte(data))
	if err != nil {
		panic(err)
	}
	return doc
}

const documentJSON = `{
	"posts": [
		{"id": "1", "title": "a title", "views": 100}
	],
	"comments": [
		{"id": "1", "text": "a comment about post 1", "postId": "1"}
	],
	"profile": {"name": "typicode"}
}`
