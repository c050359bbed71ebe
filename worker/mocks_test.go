package worker

import (
	"text2phenotype.com/notex/pipeline"
	"text2phenotype.com/notex/tasks"
	"text2phenotype.com/notex/types"
	"context"
	"errors"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

type failingMethod struct {
	fail bool
}

type withValue struct {
	fail          bool
	returnedValue interface{}
}

type runnerMock struct {
	config      runnerMockConfig
	calls       runnerCall
	lastRequest pipeline.Request
}

type runnerMockConfig struct {
	fail        bool
	clientError bool
	panics      bool
	result      interface{}
}

type runnerCall struct {
	run bool
}

type redisMock struct {
	config redisMockConfig
	calls  redisMockCalls
}

type redisMockConfig struct {
	getNoteTask           withValue
	getJobTask            withValue
	onTaskCancelled       failingMethod
	onTaskStarted         failingMethod
	onTaskExceededRetries failingMethod
	onTaskFailedWithError failingMethod
	onTaskRejected        failingMethod
	onTaskComplete        failingMethod
}

type redisMockCalls struct {
	getNoteTask           bool
	getJobTask            bool
	onTaskCancelled       bool
	onTaskStarted         bool
	onTaskExceededRetries bool
	onTaskFailedWithError bool
	onTaskRejected        bool
	onTaskComplete        bool
}

type rmqMock struct {
	config      rmqMockConfig
	calls       rmqMockCalls
	lastMessage Message
}

type rmqMockConfig struct {
	notifyCompletion    failingMethod
	acknowledgeDelivery failingMethod
}

type rmqMockCalls struct {
	notifyCompletion    bool
	acknowledgeDelivery bool
	rejectDelivery      bool
}

type s3Mock struct {
	config    s3MockConfig
	calls     s3MockCalls
	lastSaved []byte
}

type s3MockConfig struct {
	getNoteText     withValue
	saveResultsFile failingMethod
}

type s3MockCalls struct {
	getNoteText     bool
	saveResultsFile bool
}

func (mock *s3Mock) close() {}

func (mock *rmqMock) close() {}

func (mock *redisMock) close() {}

func (mock *runnerMock) Run(ctx context.Context, request pipeline.Request) (interface{}, error) {
	mock.calls.run = true
	mock.lastRequest = request
	switch {
	case mock.config.panics:
		panic("runner exploded")
	case mock.config.clientError:
		return nil, &types.EmptyInputError{}
	case mock.config.fail:
		return nil, &types.ModelCallError{Model: request.Model, Cause: errors.New("upstream unavailable")}
	}
	if mock.config.result != nil {
		return mock.config.result, nil
	}
	return types.Result{"patient_demographics": map[string]interface{}{"name": "Jane"}}, nil
}

func (mock *redisMock) getNoteTask(ctx context.Context, redisKey string) (*tasks.NoteTask, error) {
	mock.calls.getNoteTask = true
	if mock.config.getNoteTask.fail {
		return nil, errors.New("failed to get note task")
	}
	switch value := mock.config.getNoteTask.returnedValue.(type) {
	case tasks.NoteTask:
		return &value, nil
	default:
		return &tasks.NoteTask{}, nil
	}
}

func (mock *redisMock) getJobTask(task *Task) (*tasks.JobTask, error) {
	mock.calls.getJobTask = true
	if mock.config.getJobTask.fail {
		return nil, errors.New("failed to get job task")
	}
	switch value := mock.config.getJobTask.returnedValue.(type) {
	case tasks.JobTask:
		return &value, nil
	default:
		return &tasks.JobTask{}, nil
	}
}

func (mock *redisMock) onTaskStarted(task *Task) error {
	mock.calls.onTaskStarted = true
	if mock.config.onTaskStarted.fail {
		return errors.New("failed to update note task on start")
	}
	return nil
}

func (mock *redisMock) onTaskCancelled(task *Task, errorMessages ...string) error {
	mock.calls.onTaskCancelled = true
	if mock.config.onTaskCancelled.fail {
		return errors.New("failed to update note task on cancel")
	}
	return nil
}

func (mock *redisMock) onTaskExceededRetries(task *Task, maxRetries int) error {
	mock.calls.onTaskExceededRetries = true
	if mock.config.onTaskExceededRetries.fail {
		return errors.New("failed to update note task on exceeded retries")
	}
	return nil
}

func (mock *redisMock) onTaskFailedWithError(task *Task, err error) error {
	mock.calls.onTaskFailedWithError = true
	if mock.config.onTaskFailedWithError.fail {
		return errors.New("failed to update note task on fail with error")
	}
	return nil
}

func (mock *redisMock) onTaskRejected(task *Task, err error) error {
	mock.calls.onTaskRejected = true
	if mock.config.onTaskRejected.fail {
		return errors.New("failed to update note task on rejection")
	}
	return nil
}

func (mock *redisMock) onTaskComplete(task *Task) error {
	mock.calls.onTaskComplete = true
	if mock.config.onTaskComplete.fail {
		return errors.New("failed to update note task on complete")
	}
	return nil
}

func (mock *rmqMock) rejectDelivery(delivery *amqp.Delivery, rejectLogger *zerolog.Logger) {
	mock.calls.rejectDelivery = true
}

func (mock *rmqMock) getDeliveriesCh() <-chan amqp.Delivery {
	return nil
}

func (mock *rmqMock) getReqChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) getRespChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) notifyCompletion(task *Task, message Message) error {
	mock.calls.notifyCompletion = true
	mock.lastMessage = message
	if mock.config.notifyCompletion.fail {
		return errors.New("failed to notify completion")
	}
	return nil
}

func (mock *rmqMock) acknowledgeDelivery(delivery *amqp.Delivery) error {
	mock.calls.acknowledgeDelivery = true
	if mock.config.acknowledgeDelivery.fail {
		return errors.New("failed to acknowledge delivery")
	}
	return nil
}

func (mock *s3Mock) getNoteText(task *Task) ([]byte, error) {
	mock.calls.getNoteText = true
	if mock.config.getNoteText.fail {
		return nil, errors.New("mock: failed to load from s3")
	}
	switch value := mock.config.getNoteText.returnedValue.(type) {
	case []byte:
		return value, nil
	default:
		return []byte("Patient: Jane Doe. Taking lisinopril 10mg daily."), nil
	}
}

func (mock *s3Mock) saveResultsFile(task *Task, result []byte) error {
	mock.calls.saveResultsFile = true
	mock.lastSaved = result
	if mock.config.saveResultsFile.fail {
		return errors.New("failed to upload results")
	}
	return nil
}
