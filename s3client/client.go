package s3client

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"text2phenotype.com/postag/logger"
)

type EnvironmentConfig struct {
	BucketName  string `envconfig:"MDL_COMN_STORAGE_CONTAINER_NAME" required:"true"`
	T2PEnv      string `envconfig:"T2P_ENV" required:"true"`
	Region      string `envconfig:"MDL_COMN_AWS_REGION_NAME" required:"true"`
	AwsEndpoint string `envconfig:"MDL_COMN_AWS_ENDPOINT_URL" default:""`
	AccessKeyID string `envconfig:"MDL_COMN_AWS_ACCESS_ID" default:""`
	AccessKey   string `envconfig:"MDL_COMN_AWS_ACCESS_KEY" default:""`
}

type Client struct {
	env EnvironmentConfig

	mu   sync.Mutex
	sess *session.Session
}

var clientLogger = logger.NewLogger("S3Client")
var sdkLogger = logger.NewLogger("S3-SDK")

func New() (*Client, error) {
	var env EnvironmentConfig
	if err := envconfig.Process("", &env); err != nil {
		clientLogger.Err(err).Caller().Msg("Failed to get proper variables from environment")
		return nil, err
	}
	client := Client{env: env}
	if _, err := client.refreshSession(nil); err != nil {
		return nil, err
	}
	return &client, nil
}

func (client *Client) Upload(data []byte, key string) error {
	params := &s3manager.UploadInput{
		Bucket: aws.String(client.env.BucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	return client.withSession(func(sess *session.Session) error {
		log := client.keyLogger(key)
		uploader := s3manager.NewUploader(sess.Copy(&aws.Config{Logger: getLogger(sdkLogger, key)}))
		log.Debug().Int("size", len(data)).Msg("Uploading the file")
		_, err := uploader.Upload(params)
		return err
	})
}

func (client *Client) Download(key string) ([]byte, error) {
	params := &s3.GetObjectInput{
		Bucket: aws.String(client.env.BucketName),
		Key:    aws.String(key),
	}
	var res []byte
	err := client.withSession(func(sess *session.Session) error {
		log := client.keyLogger(key)
		downloader := s3manager.NewDownloader(sess.Copy(&aws.Config{Logger: getLogger(sdkLogger, key)}))
		buf := aws.NewWriteAtBuffer([]byte{})
		log.Debug().Msg("Downloading file")
		size, err := downloader.Download(buf, params)
		if err != nil {
			log.Error().Err(err).Msg("Failed to download file")
			return err
		}
		log.Debug().Msgf("Downloaded %v bytes", size)
		res = buf.Bytes()
		return nil
	})
	return res, err
}

func (client *Client) Close() {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.sess = nil
	clientLogger.Info().Msg("Closed client")
}

// withSession runs do with the current session and retries once on a fresh
// session when it fails.
func (client *Client) withSession(do func(sess *session.Session) error) error {
	client.mu.Lock()
	sess := client.sess
	client.mu.Unlock()
	if sess == nil {
		return errors.New("s3 client is closed")
	}
	err := do(sess)
	if err == nil {
		return nil
	}
	clientLogger.Error().Err(err).Msg("Caught error while using S3 session, trying to refresh it")
	sess, refreshErr := client.refreshSession(sess)
	if refreshErr != nil {
		return fmt.Errorf("%v (session refresh failed: %w)", err, refreshErr)
	}
	return do(sess)
}

// refreshSession replaces stale with a new session. Concurrent callers that
// saw the same stale session share a single refresh.
func (client *Client) refreshSession(stale *session.Session) (*session.Session, error) {
	client.mu.Lock()
	defer client.mu.Unlock()
	if client.sess != stale {
		if client.sess == nil {
			return nil, errors.New("s3 client is closed")
		}
		return client.sess, nil
	}
	sess, err := client.acquireNewSession()
	if err != nil {
		return nil, err
	}
	client.sess = sess
	return sess, nil
}

func (client *Client) acquireNewSession() (*session.Session, error) {
	sess, err := session.NewSession(client.createEC2Config())
	if err == nil {
		if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err == nil {
			clientLogger.Info().Msg("S3 session successfully initialized using EC2")
			return sess, nil
		}
	}
	clientLogger.Info().Msg("Could not initialize S3 session using EC2, trying env credentials")

	cfg, err := client.createEnvConfig()
	if err != nil {
		clientLogger.Error().Err(err).Msg("Error with credentials from environment")
		return nil, err
	}
	sess, err = session.NewSession(cfg)
	if err != nil {
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return nil, err
	}
	if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err != nil {
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return nil, errors.New("could not initialize S3 session")
	}
	clientLogger.Info().Msg("S3 session successfully initialized using env credentials")
	return sess, nil
}

func (client *Client) createEC2Config() *aws.Config {
	return &aws.Config{
		Region:     aws.String(client.env.Region),
		MaxRetries: aws.Int(4),
		LogLevel:   aws.LogLevel(aws.LogDebug),
	}
}

func (client *Client) createEnvConfig() (*aws.Config, error) {
	creds := credentials.NewStaticCredentials(client.env.AccessKeyID, client.env.AccessKey, "")
	if _, err := creds.Get(); err != nil {
		return nil, err
	}
	cfg := aws.NewConfig().
		WithRegion(client.env.Region).
		WithMaxRetries(4).
		WithCredentials(creds).
		WithLogLevel(aws.LogDebug)

	if client.env.T2PEnv == "dev" && len(client.env.AwsEndpoint) > 0 {
		cfg = cfg.WithEndpoint(client.env.AwsEndpoint).
			WithS3ForcePathStyle(true)
	}
	return cfg, nil
}

func (client *Client) keyLogger(key string) zerolog.Logger {
	return clientLogger.With().
		Str("key", key).
		Str("bucket", client.env.BucketName).Logger()
}

type s3Logger struct {
	postagLogger zerolog.Logger
}

func getLogger(base zerolog.Logger, key string) *s3Logger {
	return &s3Logger{base.With().Str("key", key).Logger()}
}

func (logger *s3Logger) Log(v ...interface{}) {
	logger.postagLogger.Debug().Msg(fmt.Sprint(v...))
}
