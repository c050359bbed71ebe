package worker

import (
	"text2phenotype.com/notex/s3client"
)

type s3Transactions interface {
	saveResultsFile(task *Task, result []byte) error
	getNoteText(task *Task) ([]byte, error)
	close()
}

type s3ClientWrapper struct {
	s3Client *s3client.Client
}

func (wrapper *s3ClientWrapper) close() {
	wrapper.s3Client.Close()
}

func (wrapper *s3ClientWrapper) saveResultsFile(task *Task, result []byte) error {
	_, err := wrapper.s3Client.Upload(result, getResultsFileKey(task), "application/json")
	return err
}

func (wrapper *s3ClientWrapper) getNoteText(task *Task) ([]byte, error) {
	return wrapper.s3Client.Download(task.noteTask.TextFileKey)
}
