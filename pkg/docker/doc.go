/*
Package docker wraps the docker CLI as typed operations for single-container
deployments.

Every operation shells out through a pkg/executor CommandExecutor, so the same
code path deploys to the local machine and to SSH targets. The package never
talks to the Docker API socket; capability scanning does that where available,
but deployment deliberately rides the CLI so behavior matches what an operator
would get running the same command by hand.

# Operation Contract

Mutating operations (DeployContainer, Stop, Remove, Restart, Logs,
RemoveVolume) report (ok, output):

  - success: ok=true, output is trimmed stdout (container ID for run)
  - non-zero exit: ok=false, output is trimmed stderr
  - deadline exceeded: ok=false, output is TimeoutOutput ("Timeout")

The output string is appended to deployment logs either way, so failures keep
their original docker error text. GetStatus is the exception: it returns a
parsed ContainerStatus or an error, because its output feeds decisions rather
than logs.

RemoveVolume treats "not found" and "no such volume" failures as success;
teardown runs repeatedly and must stay idempotent.

# Command Assembly

ContainerSpec.RunCommand builds the docker run invocation:

	docker run -d --name NAME --restart POLICY \
	    -e 'K=V' ... -p HOST:CONTAINER ... -v 'MAP' ... \
	    --health-cmd 'CMD' --label 'K=V' ... IMAGE [CMD...]

Map-backed flags (environment, labels) are emitted in sorted key order so the
command is reproducible in tests and logs. Values that could carry arbitrary
rendered content are shell-quoted; fields that stay unquoted (name, image,
ports, restart policy) are validated against strict character sets instead,
which keeps command lines identical to what the docs promise and blocks shell
metacharacters from rendered templates.

# Usage

	exec, err := executor.ForTarget(target)
	if err != nil {
		return err
	}
	defer exec.Close()

	d := docker.New(exec, docker.Config{})
	spec, err := docker.FromConfig(deployment.Config)
	if err != nil {
		return err
	}
	spec.Name = containerName
	if ok, output := d.DeployContainer(ctx, spec); !ok {
		return fmt.Errorf("deploy failed: %s", output)
	}

# Integration Points

  - pkg/executor: command transport (local subprocess or SSH)
  - pkg/orchestrator: drives deploy, teardown and status through this package
  - pkg/compose: the multi-service sibling for compose-type stacks
*/
package docker
