package s3client

import (
	"text2phenotype.com/notex/logger"
	"bytes"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"io"
)

// Client reads note text from and writes extraction results to one bucket.
// The session is owned by a refresher goroutine; callers ask it for the
// current session and report errors so it can acquire a new one.
type Client struct {
	holder     *sessionHolder
	bucketName string
	env        EnvironmentConfig
	acquire    func(*Client) (*session.Session, error)
}

type sessionHolder struct {
	curr      *session.Session
	requestCh <-chan *session.Session
	errorCh   chan<- error
	closeCh   chan<- struct{}
}

var clientLogger = logger.NewLogger("S3 client")
var sdkLogger = logger.NewLogger("S3 SDK")

type EnvironmentConfig struct {
	BucketName  string `envconfig:"NOTEX_S3_BUCKET" required:"true"`
	Env         string `envconfig:"NOTEX_ENV" default:"prod"`
	Region      string `envconfig:"NOTEX_AWS_REGION" required:"true"`
	AwsEndpoint string `envconfig:"NOTEX_AWS_ENDPOINT_URL" default:""`
	AccessKeyID string `envconfig:"NOTEX_AWS_ACCESS_ID" default:""`
	AccessKey   string `envconfig:"NOTEX_AWS_ACCESS_KEY" default:""`
}

func New() (*Client, error) {
	var env EnvironmentConfig
	if err := envconfig.Process("", &env); err != nil {
		clientLogger.Err(err).Msg("Failed to get proper variables from environment")
		return nil, err
	}
	return newClient(env, acquireSession)
}

func newClient(env EnvironmentConfig, acquire func(*Client) (*session.Session, error)) (*Client, error) {
	client := &Client{
		bucketName: env.BucketName,
		env:        env,
		acquire:    acquire,
	}
	sessionCh := make(chan *session.Session)
	errorCh := make(chan error)
	closeCh := make(chan struct{}, 1)
	client.holder = &sessionHolder{
		requestCh: sessionCh,
		errorCh:   errorCh,
		closeCh:   closeCh,
	}
	sess, err := acquire(client)
	if err != nil {
		return nil, err
	}
	client.holder.curr = sess
	go client.keepSessionRefreshed(sessionCh, errorCh, closeCh)
	return client, nil
}

func (client *Client) Upload(data []byte, key, contentType string) (*s3manager.UploadOutput, error) {
	params := &s3manager.UploadInput{
		Bucket:      aws.String(client.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	sess, err := client.session()
	if err != nil {
		return nil, err
	}
	output, err := client.upload(sess, params)
	if err == nil {
		return output, nil
	}
	if sess, err = client.tryRefreshingSession(err); err != nil {
		return nil, err
	}
	params.Body = bytes.NewReader(data)
	return client.upload(sess, params)
}

func (client *Client) Download(key string) ([]byte, error) {
	params := &s3.GetObjectInput{
		Bucket: aws.String(client.bucketName),
		Key:    aws.String(key),
	}
	sess, err := client.session()
	if err != nil {
		return nil, err
	}
	res, err := client.download(sess, params)
	if err == nil {
		return res, nil
	}
	if sess, err = client.tryRefreshingSession(err); err != nil {
		return nil, err
	}
	return client.download(sess, params)
}

func (client *Client) Close() {
	client.holder.closeCh <- struct{}{}
}

func (client *Client) upload(sess *session.Session, params *s3manager.UploadInput) (*s3manager.UploadOutput, error) {
	s3Log := clientLogger.With().Str("key", *params.Key).Str("bucket", *params.Bucket).Logger()
	sdkLog := sdkLogger.With().Str("key", *params.Key).Str("bucket", *params.Bucket).Logger()

	uploader := s3manager.NewUploader(sess.Copy(&aws.Config{Logger: &s3Logger{sdkLog}}))
	s3Log.Debug().Msg("Uploading the file")
	return uploader.Upload(params)
}

func (client *Client) download(sess *session.Session, params *s3.GetObjectInput) ([]byte, error) {
	s3Log := clientLogger.With().Str("key", *params.Key).Str("bucket", *params.Bucket).Logger()
	sdkLog := sdkLogger.With().Str("key", *params.Key).Str("bucket", *params.Bucket).Logger()

	svc := s3.New(sess.Copy(&aws.Config{Logger: &s3Logger{sdkLog}}))
	s3Log.Debug().Msg("Downloading file")
	out, err := svc.GetObject(params)
	if err != nil {
		s3Log.Error().Err(err).Msg("Failed to download file")
		return nil, err
	}
	defer out.Body.Close()
	buf, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	s3Log.Debug().Msgf("Downloaded %d bytes", len(buf))
	return buf, nil
}

func (client *Client) keepSessionRefreshed(sessionCh chan<- *session.Session, errorCh <-chan error, closeCh <-chan struct{}) {
	for {
		select {
		case sessionCh <- client.holder.curr:
			continue
		default:
		}
		select {
		case sessionCh <- client.holder.curr:
		case err := <-errorCh:
			clientLogger.Error().Err(err).Msg("Caught error while using S3 session, trying to refresh it")
			sess, err := client.acquire(client)
			client.holder.curr = sess
			if err != nil {
				clientLogger.Error().Err(err).Msg("Caught error while refreshing S3 session")
				continue
			}
			clientLogger.Info().Msg("Successfully refreshed session")
		case <-closeCh:
			clientLogger.Info().Msg("Closing client")
			return
		}
	}
}

func (client *Client) tryRefreshingSession(err error) (*session.Session, error) {
	var sess *session.Session
	select {
	case client.holder.errorCh <- err:
		sess = <-client.holder.requestCh
	case sess = <-client.holder.requestCh:
	}
	if sess == nil {
		return nil, fmt.Errorf("failed to refresh session after: %w", err)
	}
	return sess, nil
}

func (client *Client) session() (*session.Session, error) {
	sess := <-client.holder.requestCh
	if sess == nil {
		return nil, errors.New("could not get session")
	}
	return sess, nil
}

func (client *Client) instanceConfig() *aws.Config {
	return &aws.Config{
		Region:     aws.String(client.env.Region),
		MaxRetries: aws.Int(4),
		LogLevel:   aws.LogLevel(aws.LogDebug),
	}
}

func (client *Client) staticConfig() (*aws.Config, error) {
	creds := credentials.NewStaticCredentials(client.env.AccessKeyID, client.env.AccessKey, "")
	if _, err := creds.Get(); err != nil {
		return nil, fmt.Errorf("credentials from environment: %w", err)
	}
	cfg := aws.NewConfig().
		WithRegion(client.env.Region).
		WithMaxRetries(4).
		WithCredentials(creds).
		WithLogLevel(aws.LogDebug)
	if client.env.Env == "dev" && client.env.AwsEndpoint != "" {
		cfg = cfg.WithEndpoint(client.env.AwsEndpoint).WithS3ForcePathStyle(true)
	}
	return cfg, nil
}

// acquireSession tries the instance role first, then static credentials, and
// proves each candidate with an STS identity call.
func acquireSession(client *Client) (*session.Session, error) {
	sess, err := session.NewSession(client.instanceConfig())
	if err == nil {
		if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err == nil {
			clientLogger.Info().Msg("S3 session successfully initialized using instance role")
			return sess, nil
		}
	}
	clientLogger.Info().Err(err).Msg("Could not initialize S3 session using instance role, trying env credentials")
	cfg, err := client.staticConfig()
	if err != nil {
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

type s3Logger struct {
	sdkLog zerolog.Logger
}

func (l *s3Logger) Log(v ...interface{}) {
	l.sdkLog.Debug().Msg(fmt.Sprint(v...))
}
