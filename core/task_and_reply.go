package core

import "context"

// PostTaskAndReply runs task on taskRunner and, once it has finished, posts
// reply to replyRunner. Useful for do-work-then-report-back flows between a
// background runner and an owner runner.
//
// If task panics the reply is not posted; the panic is handled by
// taskRunner's dispatch boundary like any other task failure.
func PostTaskAndReply(taskRunner TaskRunner, task Task, reply Task, replyRunner TaskRunner) {
	taskRunner.PostTask(func(ctx context.Context) {
		task(ctx)
		replyRunner.PostTask(reply)
	})
}
