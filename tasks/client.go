package tasks

import (
	"fmt"

	"text2phenotype.com/postag/redis"
)

type Client struct {
	Tags TagTasks
}

// NewClient is a preferred way for working with tagging tasks
func NewClient() (Client, error) {
	tagsRedisClient, err := redis.NewClient(TagTasksDB)
	if err != nil {
		return Client{}, err
	}
	return Client{
		Tags: TagTasks{client: &tagsRedisClient},
	}, nil
}

func (client *Client) Close() {
	_ = client.Tags.client.Close()
}

func resultsKey(redisKey string) string {
	return fmt.Sprintf("%s-results", redisKey)
}
