package tasks

import (
	"text2phenotype.com/notex/redis"
)

type Client struct {
	Notes NoteTasks
	Jobs  JobTasks
}

// NewClient is a preferred way for working with task documents
func NewClient() (Client, error) {
	jobsRedisClient, err := redis.NewClient(JobsDB)
	if err != nil {
		return Client{}, err
	}
	notesRedisClient, err := redis.NewClient(NotesDB)
	if err != nil {
		_ = jobsRedisClient.Close()
		return Client{}, err
	}
	return Client{
		Notes: NoteTasks{client: notesRedisClient},
		Jobs:  JobTasks{client: jobsRedisClient},
	}, nil
}

func (client *Client) Close() {
	_ = client.Notes.client.Close()
	_ = client.Jobs.client.Close()
}
